package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// LocalProviderKey is the registry key of the in-process converter
const LocalProviderKey = "local"

var localFileTypes = []string{"pdf", "docx", "epub", "html", "csv", "txt", "md"}

// LocalProvider converts documents in-process without a remote backend
type LocalProvider struct {
	costPer1K float64
}

// LocalOptions declares the configuration of LocalProvider
func LocalOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.FloatOption(provider.OptCostPer1KPages, 0, 0, 1000, "Cost in USD per 1,000 processed pages"),
	}
}

// NewLocalProvider creates a new local document provider
func NewLocalProvider(opts provider.Options) (*LocalProvider, error) {
	return &LocalProvider{
		costPer1K: opts.Float(provider.OptCostPer1KPages),
	}, nil
}

func (l *LocalProvider) Name() string {
	return "Local converter"
}

func (l *LocalProvider) Description() string {
	return "Extract text from PDF, Word, EPUB, HTML, CSV and plain text files without a cloud backend."
}

func (l *LocalProvider) Options() []provider.OptionSpec {
	return LocalOptions()
}

func (l *LocalProvider) SupportedFileTypes() []string {
	return append([]string(nil), localFileTypes...)
}

// Convert extracts text from the file
func (l *LocalProvider) Convert(ctx context.Context, data []byte, mediaType string) (*types.DocumentResult, error) {
	fileType, err := checkSupported(localFileTypes, mediaType)
	if err != nil {
		return nil, err
	}

	var text string
	pages := 0

	switch fileType {
	case "txt", "md", "csv":
		text = DecodeText(data)
	case "html":
		text = htmlToText(DecodeText(data))
	case "pdf":
		text, pages, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "epub":
		text, err = extractEPUB(data)
	}
	if err != nil {
		return nil, apperrors.DocumentProcessing(fmt.Errorf("failed to extract %s: %w", fileType, err))
	}

	if strings.TrimSpace(text) == "" {
		return nil, apperrors.DocumentProcessing(fmt.Errorf("no text could be extracted from %s file", fileType))
	}

	slog.Debug("document converted", "provider", LocalProviderKey, "file_type", fileType, "pages", pages, "chars", len(text))

	return &types.DocumentResult{
		Text:      text,
		PageCount: pages,
		Cost:      provider.PageCost(pages, l.costPer1K),
	}, nil
}

func (l *LocalProvider) Close() error {
	return nil
}

func extractPDF(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := reader.NumPage()
	parts := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		parts = append(parts, strings.TrimSpace(text))
	}

	return strings.Join(parts, PageBreak), numPages, nil
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()
		return wordParagraphs(rc)
	}

	return "", fmt.Errorf("word/document.xml not found")
}

// wordParagraphs collects the text runs of each w:p element
func wordParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockTagRe    = regexp.MustCompile(`(?i)</?(p|div|br|h[1-6]|li|tr|section|article)[^>]*>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

func htmlToText(s string) string {
	s = scriptStyleRe.ReplaceAllString(s, "")
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
