// Package ocr provides pluggable text extraction from images and scanned
// documents. The parser selects an engine from configuration; callers only
// see the Engine capability.
package ocr

import "context"

// Engine extracts plain text from image (or scanned PDF) bytes.
type Engine interface {
	// ExtractText returns the recognized text. mimeType hints at the
	// payload encoding (image/png, image/jpeg, application/pdf).
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}
