package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/docquery-ai/docquery/internal/domain"
)

// extractDOCXText reads the OOXML main document part and concatenates the
// run text, one line per paragraph. Table cells end up in document order,
// which is enough for retrieval.
func extractDOCXText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "docx is not a valid zip archive", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", domain.NewDomainError(domain.ErrCodeCorruptFile, "docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "failed to open docx document part", err)
	}
	defer rc.Close()

	return decodeDocumentXML(rc)
}

func decodeDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "malformed docx xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}
