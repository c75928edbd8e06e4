package firmware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

// Downloader fetches firmware binaries into a local directory. Images
// are streamed into a hidden temp file and only renamed into place after
// the size and checksum have been verified, so a partially written file
// is never visible downstream.
type Downloader struct {
	dir        string
	client     *http.Client
	maxRetries uint64
	log        *logger.Logger
	progress   ProgressCallback
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(cfg config.VendorConfig, dir string, log *logger.Logger) *Downloader {
	maxRetries := uint64(cfg.MaxRetries)
	if cfg.MaxRetries <= 0 {
		maxRetries = 3
	}
	return &Downloader{
		dir: dir,
		// No overall client timeout: firmware images are large and the
		// body read is bounded by ctx instead.
		client:     &http.Client{},
		maxRetries: maxRetries,
		log:        log,
	}
}

// SetProgressCallback installs a progress reporter for downloads.
func (d *Downloader) SetProgressCallback(cb ProgressCallback) {
	d.progress = cb
}

// Download fetches the firmware referenced by meta and returns the
// verified local image. Transient transport errors are retried with
// exponential backoff; cancellation or failure leaves no partial file
// behind.
func (d *Downloader) Download(ctx context.Context, meta models.FirmwareMetadata) (models.FirmwareImage, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return models.FirmwareImage{}, fmt.Errorf("failed to create firmware directory: %w", err)
	}

	name := Sluggify(fmt.Sprintf("firmware-%s-%s-%s", meta.Model, meta.PartID, meta.LatestVersion)) + ".djf"
	destPath := filepath.Join(d.dir, name)

	var img models.FirmwareImage
	operation := func() error {
		var err error
		img, err = d.downloadOnce(ctx, meta, destPath)
		if err == nil {
			return nil
		}
		// Only transport-level failures are worth retrying; a checksum
		// or truncation error will not fix itself.
		if errors.Is(err, models.ErrNetworkError) {
			d.log.Warn("Firmware download attempt failed, retrying", "url", meta.URL, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return models.FirmwareImage{}, err
	}
	return img, nil
}

// downloadOnce performs a single download attempt.
func (d *Downloader) downloadOnce(ctx context.Context, meta models.FirmwareMetadata, destPath string) (models.FirmwareImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return models.FirmwareImage{}, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return models.FirmwareImage{}, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FirmwareImage{}, fmt.Errorf("%w: firmware download returned status %d",
			models.ErrNetworkError, resp.StatusCode)
	}

	expectedSize := meta.Size
	if expectedSize == 0 && resp.ContentLength > 0 {
		expectedSize = resp.ContentLength
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".fwdl-*")
	if err != nil {
		return models.FirmwareImage{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	hasher := sha256.New()
	reader := newProgressReader(io.TeeReader(resp.Body, hasher), expectedSize, d.progress)

	written, err := io.Copy(tmp, reader)
	if err != nil {
		cleanup()
		if ctx.Err() != nil {
			return models.FirmwareImage{}, fmt.Errorf("download cancelled: %w", ctx.Err())
		}
		return models.FirmwareImage{}, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}

	if expectedSize > 0 && written != expectedSize {
		cleanup()
		return models.FirmwareImage{}, fmt.Errorf("%w: got %d of %d bytes",
			models.ErrDownloadIncomplete, written, expectedSize)
	}
	if written == 0 {
		cleanup()
		return models.FirmwareImage{}, fmt.Errorf("%w: empty response body", models.ErrDownloadIncomplete)
	}

	if meta.SHA256 != "" {
		digest := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(digest, meta.SHA256) {
			cleanup()
			return models.FirmwareImage{}, fmt.Errorf("%w: expected %s, got %s",
				models.ErrChecksumMismatch, meta.SHA256, digest)
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.FirmwareImage{}, fmt.Errorf("failed to close firmware file: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		os.Remove(tmpName)
		return models.FirmwareImage{}, fmt.Errorf("failed to move firmware into place: %w", err)
	}

	d.log.Info("Downloaded firmware", "path", destPath, "bytes", written)
	return models.FirmwareImage{Metadata: meta, Path: destPath, Size: written}, nil
}
