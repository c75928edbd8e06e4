package firmware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sedrubal/brother-printer-fwupd/config"
	"github.com/sedrubal/brother-printer-fwupd/logger"
	"github.com/sedrubal/brother-printer-fwupd/models"
)

var testInfo = models.PrinterInfo{
	Device: models.Device{Address: "192.0.2.10", UploadPort: 9100},
	Model:  "MFC-9332CDW",
	Serial: "E01234A5J678901",
	Spec:   "0403",
	FWParts: []models.FWPart{
		{ID: "MAIN", Version: "1.00"},
		{ID: "SUB1", Version: "1.05"},
	},
}

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetConsoleOutput(false)
	return log
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) *UpdateAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUpdateAPI(config.VendorConfig{
		UpdateURL: srv.URL,
		TimeoutMs: 2000,
	}, testLogger())
}

const updateAvailableResponse = `
<RESPONSEINFO>
	<FIRMUPDATEINFO>
		<VERSIONCHECK>0</VERSIONCHECK>
		<FIRMID>MAIN</FIRMID>
		<LATESTVERSION>1.20</LATESTVERSION>
		<PATH>https://download.brother.com/pub/fw/mfc9332cdw_main.djf</PATH>
	</FIRMUPDATEINFO>
</RESPONSEINFO>`

func TestLocateUpdateAvailable(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<NAME>MFC-9332CDW</NAME>") {
			t.Errorf("request body lacks model name: %s", body)
		}
		if !strings.Contains(string(body), "<FIRMCATEGORY>MAIN</FIRMCATEGORY>") {
			t.Errorf("request body lacks firmware category: %s", body)
		}
		io.WriteString(w, updateAvailableResponse)
	})

	meta, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if meta == nil {
		t.Fatal("Locate() returned nil metadata for an available update")
	}
	if meta.LatestVersion != "1.20" {
		t.Errorf("LatestVersion = %q, want %q", meta.LatestVersion, "1.20")
	}
	if meta.URL != "https://download.brother.com/pub/fw/mfc9332cdw_main.djf" {
		t.Errorf("URL = %q", meta.URL)
	}
	if meta.Model != "MFC-9332CDW" || meta.PartID != "MAIN" {
		t.Errorf("metadata identity = %+v", meta)
	}
}

func TestLocateUpToDate(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<RESPONSEINFO><FIRMUPDATEINFO><VERSIONCHECK>1</VERSIONCHECK></FIRMUPDATEINFO></RESPONSEINFO>`)
	})

	meta, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if meta != nil {
		t.Errorf("up-to-date part should yield nil metadata, got %+v", meta)
	}
}

func TestLocateVersionCheckUnknownCode(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<RESPONSEINFO><VERSIONCHECK>2</VERSIONCHECK></RESPONSEINFO>`)
	})

	meta, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if meta != nil {
		t.Errorf("VERSIONCHECK=2 should yield nil metadata, got %+v", meta)
	}
}

func TestLocateMissingPath(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<RESPONSEINFO><VERSIONCHECK>0</VERSIONCHECK><LATESTVERSION>1.20</LATESTVERSION></RESPONSEINFO>`)
	})

	_, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if !errors.Is(err, models.ErrMetadataNotFound) {
		t.Errorf("error = %v, want ErrMetadataNotFound", err)
	}
}

func TestLocateUnrecognizedStructure(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>maintenance window</body></html>`)
	})

	_, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if !errors.Is(err, models.ErrMetadataParseError) {
		t.Errorf("error = %v, want ErrMetadataParseError", err)
	}
}

func TestLocateFallbackVariant(t *testing.T) {
	var requests int
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		body, _ := io.ReadAll(r.Body)
		// Only answer once the EWS variant with the misspelled serial
		// tag arrives, like the models that need it.
		if strings.Contains(string(body), "<SELIALNO>") && strings.Contains(string(body), "<DRIVER>EWS</DRIVER>") {
			io.WriteString(w, updateAvailableResponse)
			return
		}
		io.WriteString(w, `<RESPONSEINFO><NOTHING/></RESPONSEINFO>`)
	})

	meta, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if meta == nil || meta.LatestVersion != "1.20" {
		t.Fatalf("fallback variant did not yield metadata: %+v", meta)
	}
	if requests < 2 {
		t.Errorf("expected at least two request variants, got %d", requests)
	}
}

func TestLocateNetworkError(t *testing.T) {
	api := NewUpdateAPI(config.VendorConfig{
		UpdateURL: "http://127.0.0.1:1/unreachable",
		TimeoutMs: 500,
	}, testLogger())

	_, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if !errors.Is(err, models.ErrNetworkError) {
		t.Errorf("error = %v, want ErrNetworkError", err)
	}
}

func TestLocateHTTPError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := api.Locate(context.Background(), testInfo, testInfo.FWParts[0])
	if !errors.Is(err, models.ErrNetworkError) {
		t.Errorf("error = %v, want ErrNetworkError", err)
	}
}

func TestSelectOne(t *testing.T) {
	t.Parallel()

	doc := []byte(`<a><b><c>value</c></b></a>`)
	got, err := selectOne(doc, "c")
	if err != nil {
		t.Fatalf("selectOne() error = %v", err)
	}
	if got != "value" {
		t.Errorf("selectOne() = %q, want %q", got, "value")
	}

	if _, err := selectOne(doc, "missing"); err == nil {
		t.Error("missing element should fail")
	}
	if _, err := selectOne([]byte(`<a><c>1</c><c>2</c></a>`), "c"); err == nil {
		t.Error("duplicate element should fail")
	}
}
