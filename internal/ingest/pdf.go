package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docquery-ai/docquery/internal/domain"
)

// extractPDFText pulls the native text layer out of a PDF. The underlying
// reader panics on some malformed files, so the whole extraction runs under
// a recover that maps to CorruptFile.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile,
				"pdf reader panicked", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if isEncryptedPDF(err) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedFormat, "encrypted pdf", err)
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "failed to open pdf", err)
	}

	var sb strings.Builder
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "failed to extract pdf text", err)
	}
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "failed to read pdf text", err)
	}

	return sb.String(), nil
}

func isEncryptedPDF(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "encrypt") || strings.Contains(msg, "password")
}
