// Package pipeline sequences the per-device firmware update flow:
// status query, firmware locate, download and upload. Devices run
// independently on a bounded worker pool; one device's failure never
// stops the others.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/firmware"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
	"github.com/sedrubal/brother-printer-fwupd/snmpinfo"
)

// QueryFunc fetches printer identity for one device.
type QueryFunc func(ctx context.Context, cfg config.SNMPConfig, dev models.Device) (models.PrinterInfo, error)

// DownloadFunc fetches one firmware image.
type DownloadFunc func(ctx context.Context, meta models.FirmwareMetadata) (models.FirmwareImage, error)

// UploadFunc transfers one image to a device.
type UploadFunc func(ctx context.Context, dev models.Device, model string, img models.FirmwareImage) error

// Options wires the pipeline stages together. Any nil function falls
// back to the real implementation; tests substitute fakes.
type Options struct {
	Config *config.Config
	Log    *logger.Logger
	Source firmware.MetadataSource
	Query  QueryFunc
	// DownloadOnly stops each device's pipeline after the download
	// stage, leaving the images on disk.
	DownloadOnly bool
	Download     DownloadFunc
	Upload       UploadFunc
}

// Orchestrator runs the update pipeline for a set of devices.
type Orchestrator struct {
	cfg          *config.Config
	log          *logger.Logger
	source       firmware.MetadataSource
	query        QueryFunc
	download     DownloadFunc
	upload       UploadFunc
	downloadOnly bool
}

// New creates an orchestrator, filling unset stage functions with the
// real implementations.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:          opts.Config,
		log:          opts.Log,
		source:       opts.Source,
		query:        opts.Query,
		download:     opts.Download,
		upload:       opts.Upload,
		downloadOnly: opts.DownloadOnly,
	}
	if o.source == nil {
		o.source = firmware.NewUpdateAPI(o.cfg.Vendor, o.log)
	}
	if o.query == nil {
		o.query = snmpinfo.QueryPrinterInfo
	}
	if o.download == nil {
		dl := firmware.NewDownloader(o.cfg.Vendor, o.cfg.FirmwareDir, o.log)
		o.download = dl.Download
	}
	if o.upload == nil {
		up := firmware.NewUploader(o.cfg.Upload, o.log)
		o.upload = up.Upload
	}
	return o
}

// Run drives every device to a terminal state and returns one outcome
// per device, ordered by address. The run itself only ends early when
// ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, devices []models.Device) []models.Outcome {
	if len(devices) == 0 {
		return nil
	}

	workers := o.cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(devices) {
		workers = len(devices)
	}

	jobs := make(chan models.Device)
	results := make(chan models.Outcome)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case dev, ok := <-jobs:
					if !ok {
						return
					}
					outcome := o.runDevice(ctx, dev)
					select {
					case <-ctx.Done():
						return
					case results <- outcome:
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, dev := range devices {
			select {
			case <-ctx.Done():
				return
			case jobs <- dev:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]models.Outcome, 0, len(devices))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Device.Address < outcomes[j].Device.Address
	})
	return outcomes
}

// runDevice walks one device through the state machine. Every stage
// failure produces a failed outcome for this device only.
func (o *Orchestrator) runDevice(ctx context.Context, dev models.Device) models.Outcome {
	fail := func(model string, err error) models.Outcome {
		o.log.Error("Device pipeline failed", "address", dev.Address, "error", err)
		return models.Outcome{
			Device:   dev,
			Model:    model,
			State:    models.StateFailed,
			Reason:   err.Error(),
			Err:      err,
			Finished: time.Now(),
		}
	}

	o.log.Info("Querying printer info via SNMP", "address", dev.Address)
	info, err := o.query(ctx, o.cfg.SNMP, dev)
	if err != nil {
		return fail("", err)
	}
	o.log.Info("Detected printer",
		"address", dev.Address, "model", info.Model, "parts", partsString(info.FWParts))

	var uploaded []models.FWPart
	for _, part := range info.FWParts {
		meta, err := o.source.Locate(ctx, info, part)
		if err != nil {
			return fail(info.Model, err)
		}
		if meta == nil {
			o.log.Debug("Firmware part up to date", "address", dev.Address, "part", part.ID)
			continue
		}
		if versionUpToDate(part.Version, meta.LatestVersion) {
			o.log.Debug("Installed version matches latest",
				"address", dev.Address, "part", part.ID, "version", part.Version)
			continue
		}

		o.log.Info("Update available",
			"address", dev.Address, "part", part.ID,
			"installed", part.Version, "latest", meta.LatestVersion)

		img, err := o.download(ctx, *meta)
		if err != nil {
			return fail(info.Model, err)
		}

		if o.downloadOnly {
			o.log.Info("Skipping upload (download only)", "address", dev.Address, "part", part.ID)
			uploaded = append(uploaded, models.FWPart{ID: part.ID, Version: meta.LatestVersion})
			continue
		}

		if err := o.upload(ctx, dev, info.Model, img); err != nil {
			return fail(info.Model, err)
		}
		uploaded = append(uploaded, models.FWPart{ID: part.ID, Version: meta.LatestVersion})
	}

	if len(uploaded) == 0 {
		return models.Outcome{
			Device:   dev,
			Model:    info.Model,
			State:    models.StateSkipped,
			Reason:   "all firmware parts up to date",
			Finished: time.Now(),
		}
	}

	state := models.StateUploaded
	if o.downloadOnly {
		state = models.StateDownloaded
	}
	return models.Outcome{
		Device:   dev,
		Model:    info.Model,
		State:    state,
		Uploaded: uploaded,
		Finished: time.Now(),
	}
}

// versionUpToDate reports whether the installed version already covers
// the located latest version. Versions that parse as semver are compared
// numerically; Brother's opaque build strings fall back to equality.
func versionUpToDate(installed, latest string) bool {
	if installed == latest {
		return true
	}
	iv, errI := semver.NewVersion(strings.TrimPrefix(installed, "v"))
	lv, errL := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if errI != nil || errL != nil {
		return false
	}
	return !iv.LessThan(lv)
}

func partsString(parts []models.FWPart) string {
	strs := make([]string, 0, len(parts))
	for _, p := range parts {
		strs = append(strs, p.String())
	}
	return strings.Join(strs, ", ")
}
