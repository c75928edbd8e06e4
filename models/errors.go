package models

import "errors"

// Sentinel errors for the update pipeline. Stage implementations wrap
// these with fmt.Errorf("...: %w", ...) so callers can classify failures
// with errors.Is while keeping the underlying cause in the message.
var (
	// ErrDeviceUnreachable - the device did not answer within the timeout.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrUnsupportedDevice - the device answered but lacks the required identifiers.
	ErrUnsupportedDevice = errors.New("unsupported device")
	// ErrMetadataNotFound - the vendor service has no entry for the model/part.
	ErrMetadataNotFound = errors.New("firmware metadata not found")
	// ErrMetadataParseError - the vendor response structure was not recognized.
	ErrMetadataParseError = errors.New("firmware metadata parse error")
	// ErrNetworkError - transport failure talking to the vendor service.
	ErrNetworkError = errors.New("network error")
	// ErrDownloadIncomplete - the firmware transfer was truncated.
	ErrDownloadIncomplete = errors.New("download incomplete")
	// ErrChecksumMismatch - the downloaded image failed verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUploadRejected - the device refused the firmware transfer.
	ErrUploadRejected = errors.New("upload rejected by device")
	// ErrConnectionLost - the transfer connection dropped mid-stream.
	ErrConnectionLost = errors.New("connection lost during upload")
	// ErrNoUsableInterface - no network interface can be used for discovery.
	// This one is fatal for the whole run.
	ErrNoUsableInterface = errors.New("no usable network interface")
	// ErrModelMismatch - firmware image does not belong to the target model.
	ErrModelMismatch = errors.New("firmware model mismatch")
)

// Fatal reports whether err must abort the entire run before any device
// pipeline starts, as opposed to failing a single device.
func Fatal(err error) bool {
	return errors.Is(err, ErrNoUsableInterface)
}
