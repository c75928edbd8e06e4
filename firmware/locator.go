// Package firmware locates, downloads and uploads printer firmware.
// Locating talks to the Brother update web service, downloading fetches
// the image over HTTP, and uploading streams it to the printer's PDL
// Datastream port.
package firmware

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

// MetadataSource locates the latest firmware build for one firmware part
// of a printer. A nil metadata result with a nil error means the part is
// already up to date. The vendor contract is unversioned and brittle, so
// it stays behind this interface; a structural change is patched here
// without touching the rest of the pipeline.
type MetadataSource interface {
	Locate(ctx context.Context, info models.PrinterInfo, part models.FWPart) (*models.FirmwareMetadata, error)
}

// UpdateAPI is the MetadataSource backed by the Brother firmware update
// web service. The service answers an XML POST describing the printer
// with the latest version and a download path for one firmware part.
type UpdateAPI struct {
	url        string
	reportedOS string
	client     *http.Client
	log        *logger.Logger
}

// NewUpdateAPI creates a locator against the configured update service.
func NewUpdateAPI(cfg config.VendorConfig, log *logger.Logger) *UpdateAPI {
	return &UpdateAPI{
		url:        cfg.UpdateURL,
		reportedOS: cfg.OS(),
		client:     &http.Client{Timeout: cfg.Timeout()},
		log:        log,
	}
}

// requestInfo is the XML request body of the update service.
type requestInfo struct {
	XMLName            xml.Name           `xml:"REQUESTINFO"`
	FirmUpdateToolInfo firmUpdateToolInfo `xml:"FIRMUPDATETOOLINFO"`
	FirmUpdateInfo     firmUpdateInfo     `xml:"FIRMUPDATEINFO"`
}

type firmUpdateToolInfo struct {
	FirmCategory string `xml:"FIRMCATEGORY"`
	OS           string `xml:"OS"`
	InspectMode  int    `xml:"INSPECTMODE"`
}

type firmUpdateInfo struct {
	ModelInfo    modelInfo `xml:"MODELINFO"`
	DriverCnt    int       `xml:"DRIVERCNT"`
	LogNo        int       `xml:"LOGNO"`
	ErrBit       string    `xml:"ERRBIT"`
	NeedResponse int       `xml:"NEEDRESPONSE"`
}

// modelInfo describes the target printer. SerialNo and SelialNo (the
// service's own misspelling) are alternatives: some models only answer
// when the misspelled empty tag is sent along with DRIVER=EWS.
type modelInfo struct {
	SerialNo *string  `xml:"SERIALNO,omitempty"`
	SelialNo *string  `xml:"SELIALNO,omitempty"`
	Name     string   `xml:"NAME"`
	Spec     string   `xml:"SPEC"`
	Driver   string   `xml:"DRIVER"`
	FirmInfo firmInfo `xml:"FIRMINFO"`
}

type firmInfo struct {
	Firms []firm `xml:"FIRM"`
}

type firm struct {
	ID      string `xml:"ID"`
	Version string `xml:"VERSION"`
}

// requestVariant mutates the base request body into one of the known
// accepted shapes. Variants are tried in order until one parses.
type requestVariant struct {
	name  string
	apply func(*requestInfo)
}

var requestVariants = []requestVariant{
	{name: "standard", apply: func(*requestInfo) {}},
	// Required for MFC-L3750CDW, HL-L2360DW and others: drop SERIALNO,
	// send an empty misspelled SELIALNO and report DRIVER=EWS.
	{name: "ews", apply: func(req *requestInfo) {
		empty := ""
		req.FirmUpdateInfo.ModelInfo.SerialNo = nil
		req.FirmUpdateInfo.ModelInfo.SelialNo = &empty
		req.FirmUpdateInfo.ModelInfo.Driver = "EWS"
	}},
	// Same misspelling but keeping the serial number in the renamed tag.
	{name: "ews-serial", apply: func(req *requestInfo) {
		serial := ""
		if req.FirmUpdateInfo.ModelInfo.SerialNo != nil {
			serial = *req.FirmUpdateInfo.ModelInfo.SerialNo
		}
		req.FirmUpdateInfo.ModelInfo.SerialNo = nil
		req.FirmUpdateInfo.ModelInfo.SelialNo = &serial
		req.FirmUpdateInfo.ModelInfo.Driver = "EWS"
	}},
}

// Locate asks the update service for the latest build of one firmware
// part. It returns nil metadata when the part is already up to date.
func (a *UpdateAPI) Locate(ctx context.Context, info models.PrinterInfo, part models.FWPart) (*models.FirmwareMetadata, error) {
	if info.Model == "" {
		return nil, fmt.Errorf("%w: printer model unknown", models.ErrMetadataNotFound)
	}

	var parseErrs []error
	for _, variant := range requestVariants {
		req := a.buildRequest(info, part)
		variant.apply(&req)

		body, err := xml.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", models.ErrMetadataParseError, err)
		}

		a.log.Debug("Querying update service", "variant", variant.name, "part", part.ID, "model", info.Model)
		respBody, err := a.post(ctx, body)
		if err != nil {
			return nil, err
		}

		meta, err := a.parseResponse(respBody, info.Model, part.ID)
		if err != nil {
			if errors.Is(err, models.ErrMetadataNotFound) {
				return nil, err
			}
			a.log.Warn("Update service response not understood, trying next request variant",
				"variant", variant.name, "error", err)
			parseErrs = append(parseErrs, fmt.Errorf("variant %s: %w", variant.name, err))
			continue
		}
		return meta, nil
	}

	return nil, fmt.Errorf("%w: giving up after %d request variants: %v",
		models.ErrMetadataParseError, len(requestVariants), errors.Join(parseErrs...))
}

// buildRequest assembles the standard request body for one firmware part.
func (a *UpdateAPI) buildRequest(info models.PrinterInfo, part models.FWPart) requestInfo {
	serial := info.Serial
	firms := make([]firm, 0, len(info.FWParts))
	for _, p := range info.FWParts {
		firms = append(firms, firm{ID: p.ID, Version: p.Version})
	}
	return requestInfo{
		FirmUpdateToolInfo: firmUpdateToolInfo{
			FirmCategory: part.ID,
			OS:           a.reportedOS,
			InspectMode:  1,
		},
		FirmUpdateInfo: firmUpdateInfo{
			ModelInfo: modelInfo{
				SerialNo: &serial,
				Name:     info.Model,
				Spec:     info.Spec,
				FirmInfo: firmInfo{Firms: firms},
			},
			DriverCnt:    1,
			LogNo:        2,
			NeedResponse: 1,
		},
	}
}

// post sends the XML request, mapping transport failures to the
// network-error class.
func (a *UpdateAPI) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: update service returned status %d", models.ErrNetworkError, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrNetworkError, err)
	}
	return respBody, nil
}

// parseResponse interprets the service answer for one part.
// VERSIONCHECK: 1 = up to date, 0 = update available, 2 = unknown
// condition the service never documented.
func (a *UpdateAPI) parseResponse(body []byte, model, partID string) (*models.FirmwareMetadata, error) {
	versionCheck, err := selectOne(body, "VERSIONCHECK")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataParseError, err)
	}

	switch versionCheck {
	case "1":
		a.log.Info("Firmware part is up to date", "part", partID)
		return nil, nil
	case "0":
		// update available
	case "2":
		a.log.Warn("Update service answered VERSIONCHECK=2, skipping part", "part", partID)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown VERSIONCHECK value %q", models.ErrMetadataParseError, versionCheck)
	}

	latest, err := selectOne(body, "LATESTVERSION")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataParseError, err)
	}

	if gotID, err := selectOne(body, "FIRMID"); err == nil && gotID != partID {
		a.log.Warn("Update service answered for a different firmware part",
			"requested", partID, "answered", gotID)
	}

	path, err := selectOne(body, "PATH")
	if err != nil || strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no download path for part %s version %s",
			models.ErrMetadataNotFound, partID, latest)
	}

	return &models.FirmwareMetadata{
		Model:         model,
		PartID:        partID,
		LatestVersion: latest,
		URL:           strings.TrimSpace(path),
	}, nil
}

// selectOne walks the XML document and returns the text of exactly one
// element with the given local name, at any depth.
func selectOne(doc []byte, name string) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))
	var values []string
	var inside int
	var current strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("invalid XML: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == name {
				inside++
				current.Reset()
			}
		case xml.CharData:
			if inside > 0 {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == name && inside > 0 {
				inside--
				values = append(values, current.String())
			}
		}
	}

	switch len(values) {
	case 0:
		return "", fmt.Errorf("expected element %q in response", name)
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("expected exactly one element %q, got %d", name, len(values))
	}
}
