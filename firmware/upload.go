package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

// Uploader streams verified firmware images to a printer's PDL
// Datastream (jetdirect) port. The wire format is the raw image; the
// printer starts flashing once the stream ends, so a completed upload
// is irreversible and no rollback is attempted here.
type Uploader struct {
	timeout time.Duration
	log     *logger.Logger

	// dial is swapped out by tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewUploader creates an uploader with the configured transfer timeout.
func NewUploader(cfg config.UploadConfig, log *logger.Logger) *Uploader {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &Uploader{
		timeout: timeout,
		log:     log,
		dial:    dialer.DialContext,
	}
}

// Upload sends the image to the device. The image must have been
// located for the given printer model; a mismatch is refused before any
// connection is made. Equivalent to `cat firmware.djf | nc printer 9100`.
func (u *Uploader) Upload(ctx context.Context, dev models.Device, model string, img models.FirmwareImage) error {
	if !img.MatchesModel(model) {
		return fmt.Errorf("%w: image is for %q, device reports %q",
			models.ErrModelMismatch, img.Metadata.Model, model)
	}

	f, err := os.Open(img.Path)
	if err != nil {
		return fmt.Errorf("failed to open firmware image: %w", err)
	}
	defer f.Close()

	endpoint := dev.Endpoint()
	u.log.Info("Uploading firmware", "path", img.Path, "endpoint", endpoint)

	conn, err := u.dial(ctx, "tcp", endpoint)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("%w: %s refused the connection", models.ErrUploadRejected, endpoint)
		}
		return fmt.Errorf("%w: dial %s: %v", models.ErrConnectionLost, endpoint, err)
	}
	defer conn.Close()

	// Close the connection when the run is cancelled so the copy below
	// unblocks instead of waiting out the write deadline.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(u.timeout)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectionLost, err)
	}

	written, err := io.Copy(conn, f)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		}
		if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
			return fmt.Errorf("%w: device closed the stream after %d bytes",
				models.ErrUploadRejected, written)
		}
		return fmt.Errorf("%w: after %d of %d bytes: %v", models.ErrConnectionLost, written, img.Size, err)
	}
	if img.Size > 0 && written != img.Size {
		return fmt.Errorf("%w: wrote %d of %d bytes", models.ErrConnectionLost, written, img.Size)
	}

	u.log.Info("Firmware upload complete", "endpoint", endpoint, "bytes", written)
	return nil
}
