package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/docquery-ai/docquery/internal/domain"
)

// TesseractEngine shells out to a local tesseract binary. Used when images
// must not leave the deployment.
type TesseractEngine struct {
	binary    string
	languages string
}

// NewTesseractEngine returns an engine invoking binary with the given
// language set (tesseract syntax, e.g. "kor+eng"). Empty arguments fall
// back to "tesseract" and "kor+eng".
func NewTesseractEngine(binary, languages string) *TesseractEngine {
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "kor+eng"
	}
	return &TesseractEngine{binary: binary, languages: languages}
}

func (e *TesseractEngine) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "application/pdf" {
		return "", domain.NewDomainError(domain.ErrCodeUnsupportedFormat,
			"tesseract backend cannot read PDF pages directly; use the vision backend for scanned PDFs")
	}

	tmp, err := os.CreateTemp("", "docquery-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp image: %w", err)
	}

	// "stdout" makes tesseract print recognized text instead of writing a file.
	cmd := exec.CommandContext(ctx, e.binary, tmp.Name(), "stdout", "-l", e.languages)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeParseTimeout, "tesseract OCR timed out", ctx.Err())
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile,
			fmt.Sprintf("tesseract failed: %s", strings.TrimSpace(stderr.String())), err)
	}

	return strings.TrimSpace(out.String()), nil
}
