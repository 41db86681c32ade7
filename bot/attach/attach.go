// Package attach prepares user-uploaded report photos for the multipart
// close endpoint, recompressing JPEGs that would trip the backend's body
// size limit.
package attach

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// MaxUploadBytes is the per-file limit the backend accepts without a 413.
const MaxUploadBytes = 2 << 20

// Prepare returns upload-ready bytes for a report photo. Files under the
// limit pass through untouched. Oversized JPEGs are re-encoded at stepwise
// lower quality until they fit; anything else oversized is rejected.
func Prepare(name string, data []byte) ([]byte, error) {
	if len(data) <= MaxUploadBytes {
		return data, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("attach: %s exceeds %d bytes and is not an image: %w", name, MaxUploadBytes, err)
	}
	if format != "jpeg" {
		return nil, fmt.Errorf("attach: %s exceeds %d bytes (%s not recompressed)", name, MaxUploadBytes, format)
	}

	for quality := 85; quality >= 25; quality -= 15 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("attach: recompress %s: %w", name, err)
		}
		if buf.Len() <= MaxUploadBytes {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("attach: %s does not fit %d bytes even at lowest quality", name, MaxUploadBytes)
}
