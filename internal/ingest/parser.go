package ingest

import (
	"context"
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/ingest/ocr"
)

// Parser converts raw file bytes into plain text. Native extraction runs
// first; when the extracted text's readable density falls below MinDensity
// (a scanned PDF, typically) and an OCR engine is configured, the bytes go
// through OCR instead. Parse has no side effects: a failure leaves nothing
// behind.
type Parser struct {
	ocrEngine  ocr.Engine // nil when OCR is disabled
	minDensity float64
}

// NewParser builds a Parser. engine may be nil to disable the OCR fallback;
// minDensity is the readable-character ratio below which native output is
// considered garbled.
func NewParser(engine ocr.Engine, minDensity float64) *Parser {
	if minDensity <= 0 {
		minDensity = 0.30
	}
	return &Parser{ocrEngine: engine, minDensity: minDensity}
}

// Parse extracts plain text from data. declaredMIME is the client's claim;
// the actual dispatch uses content sniffing so a mislabeled upload still
// parses. Honors ctx deadlines, mapping them to ParseTimeout.
func (p *Parser) Parse(ctx context.Context, data []byte, declaredMIME, filename string) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeParseTimeout, "parse cancelled", err)
	}

	detected := mimetype.Detect(data)

	var (
		text string
		err  error
	)
	switch {
	case detected.Is("application/pdf"):
		text, err = p.parsePDF(ctx, data)
	case detected.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		text, err = extractDOCXText(data)
	case strings.HasPrefix(detected.String(), "image/"):
		text, err = p.ocrText(ctx, data, detected.String())
	case strings.HasPrefix(detected.String(), "text/") || strings.HasPrefix(declaredMIME, "text/"):
		text, err = parsePlainText(data)
	default:
		// Unknown container: some uploads are plain text with an odd
		// extension. Try it before rejecting.
		if utf8.Valid(data) {
			text, err = parsePlainText(data)
		} else {
			return "", domain.NewDomainError(domain.ErrCodeUnsupportedFormat,
				"unsupported file format: "+detected.String())
		}
	}
	if err != nil {
		return "", mapParseErr(ctx, err, filename)
	}

	clean := CleanText(text)
	if clean == "" {
		return "", domain.ErrEmptyDocument
	}
	return clean, nil
}

// parsePDF tries the native text layer first and falls back to OCR when the
// output is empty or garbled.
func (p *Parser) parsePDF(ctx context.Context, data []byte) (string, error) {
	text, err := extractPDFText(data)
	if err != nil && p.ocrEngine == nil {
		return "", err
	}

	clean := CleanText(text)
	if err == nil && clean != "" && TextDensity(clean) >= p.minDensity {
		return text, nil
	}

	if p.ocrEngine == nil {
		if err != nil {
			return "", err
		}
		// Native extraction produced nothing usable and there is no OCR
		// to try: treat as empty rather than corrupt.
		return "", domain.ErrEmptyDocument
	}

	log.Printf("parser: native pdf text density %.2f below %.2f, falling back to OCR",
		TextDensity(clean), p.minDensity)
	return p.ocrText(ctx, data, "application/pdf")
}

func (p *Parser) ocrText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if p.ocrEngine == nil {
		return "", domain.NewDomainError(domain.ErrCodeUnsupportedFormat,
			"image input requires an OCR backend, none configured")
	}
	return p.ocrEngine.ExtractText(ctx, data, mimeType)
}

func parsePlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		// Replace invalid sequences rather than failing: legacy encodings
		// still carry some readable content and the density check catches
		// hopeless cases downstream.
		data = []byte(strings.ToValidUTF8(string(data), ""))
	}
	return string(data), nil
}

func mapParseErr(ctx context.Context, err error, filename string) error {
	if ctx.Err() != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeParseTimeout,
			"parsing "+filename+" exceeded the deadline", ctx.Err())
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "failed to parse "+filename, err)
}
