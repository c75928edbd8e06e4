package firmware

import "io"

// ProgressCallback reports download progress. percent is 0-100, or -1
// when the total size is unknown; bytesRead is the running byte count.
type ProgressCallback func(percent int, bytesRead int64)

// progressReader wraps an io.Reader and calls a callback as bytes pass
// through. The callback fires only when the percentage changes.
type progressReader struct {
	reader      io.Reader
	totalSize   int64
	bytesRead   int64
	callback    ProgressCallback
	lastPercent int
}

func newProgressReader(reader io.Reader, totalSize int64, callback ProgressCallback) *progressReader {
	return &progressReader{
		reader:      reader,
		totalSize:   totalSize,
		callback:    callback,
		lastPercent: -1,
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		if pr.callback != nil {
			if pr.totalSize > 0 {
				percent := int((pr.bytesRead * 100) / pr.totalSize)
				if percent > 100 {
					percent = 100
				}
				if percent > pr.lastPercent {
					pr.lastPercent = percent
					pr.callback(percent, pr.bytesRead)
				}
			} else {
				pr.callback(-1, pr.bytesRead)
			}
		}
	}
	return n, err
}
