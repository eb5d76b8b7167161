package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
)

func TestResolveFileType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"application/pdf", "pdf"},
		{"text/plain; charset=utf-8", "txt"},
		{"text/markdown", "md"},
		{"TXT", "txt"},
		{".md", "md"},
		{"report.PDF", "pdf"},
		{"photo.jpeg", "jpg"},
		{"image/jpeg", "jpg"},
		{"application/x-unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ResolveFileType(tt.input); got != tt.want {
				t.Errorf("ResolveFileType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeText(t *testing.T) {
	got := DecodeText([]byte("\xef\xbb\xbfline one\r\nline two\xff"))
	if got != "line one\nline two�" {
		t.Errorf("Unexpected decoded text: %q", got)
	}
}

func TestLocalProvider_Convert(t *testing.T) {
	p, err := NewLocalProvider(provider.Options{})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	ctx := context.Background()

	t.Run("PlainText", func(t *testing.T) {
		result, err := p.Convert(ctx, []byte("Page one.\n\nPage two."), "text/plain")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Text != "Page one.\n\nPage two." {
			t.Errorf("Unexpected text: %q", result.Text)
		}
		if result.PageCount != 0 || result.Cost != 0 {
			t.Errorf("Expected zero pages and cost, got %d / %v", result.PageCount, result.Cost)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		data := []byte("# Title\n\nSome *markdown* body.")
		first, err := p.Convert(ctx, data, "md")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		second, err := p.Convert(ctx, data, "md")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Expected identical results, got %+v and %+v", first, second)
		}
	})

	t.Run("HTML", func(t *testing.T) {
		html := "<html><head><style>p{}</style></head><body><h1>Hello</h1><p>World &amp; friends</p></body></html>"
		result, err := p.Convert(ctx, []byte(html), "text/html")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if !strings.Contains(result.Text, "Hello") || !strings.Contains(result.Text, "World & friends") {
			t.Errorf("Unexpected text: %q", result.Text)
		}
		if strings.Contains(result.Text, "p{}") {
			t.Errorf("Style content leaked: %q", result.Text)
		}
	})

	t.Run("DOCX", func(t *testing.T) {
		result, err := p.Convert(ctx, buildDOCX(t, "First paragraph.", "Second paragraph."), "docx")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Text != "First paragraph.\n\nSecond paragraph." {
			t.Errorf("Unexpected text: %q", result.Text)
		}
	})

	t.Run("EPUB", func(t *testing.T) {
		result, err := p.Convert(ctx, buildEPUB(t), "application/epub+zip")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Text != "Chapter One\n\nIt begins.\n\nChapter Two\n\nIt ends." {
			t.Errorf("Unexpected text: %q", result.Text)
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		_, err := p.Convert(ctx, []byte{0x00}, "application/x-msdownload")
		if err == nil {
			t.Fatal("Expected error for unsupported format")
		}
		if !apperrors.Is(err, apperrors.KindUnsupportedFormat) {
			t.Errorf("Expected unsupported format error, got %v", err)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		_, err := p.Convert(ctx, []byte("   \n"), "txt")
		if !apperrors.Is(err, apperrors.KindDocumentProcessing) {
			t.Errorf("Expected document processing error, got %v", err)
		}
	})

	t.Run("CorruptPDF", func(t *testing.T) {
		_, err := p.Convert(ctx, []byte("not a pdf"), "application/pdf")
		if !apperrors.Is(err, apperrors.KindDocumentProcessing) {
			t.Errorf("Expected document processing error, got %v", err)
		}
	})
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var xmlBody strings.Builder
	xmlBody.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		xmlBody.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	xmlBody.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	w.Write([]byte(xmlBody.String()))
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// buildEPUB writes a two chapter book whose spine order differs from the
// manifest order
func buildEPUB(t *testing.T) []byte {
	t.Helper()
	files := []struct{ name, body string }{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<?xml version="1.0"?><container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"OEBPS/content.opf", `<?xml version="1.0"?><package xmlns="http://www.idpf.org/2007/opf" version="3.0"><manifest>` +
			`<item id="c2" href="text/two.xhtml" media-type="application/xhtml+xml"/>` +
			`<item id="c1" href="text/one.xhtml" media-type="application/xhtml+xml"/>` +
			`<item id="css" href="style.css" media-type="text/css"/>` +
			`</manifest><spine><itemref idref="c1"/><itemref idref="c2"/></spine></package>`},
		{"OEBPS/text/one.xhtml", `<html><body><h1>Chapter One</h1><p>It begins.</p></body></html>`},
		{"OEBPS/text/two.xhtml", `<html><body><h1>Chapter Two</h1><p>It ends.</p></body></html>`},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("Failed to create zip entry: %v", err)
		}
		w.Write([]byte(f.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func newAzureTestProvider(t *testing.T, endpoint string) *AzureProvider {
	t.Helper()
	opts, err := provider.ResolveOptions(AzureOptions(), provider.Options{
		"endpoint":         endpoint,
		"api_key":          "test-key",
		"poll_interval_ms": 10,
	})
	if err != nil {
		t.Fatalf("Failed to resolve options: %v", err)
	}
	p, err := NewAzureProvider(opts)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return p
}

func TestAzureProvider_Convert(t *testing.T) {
	t.Run("AnalyzeAndPoll", func(t *testing.T) {
		var polls int32
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
				t.Errorf("Expected subscription key header, got '%s'", r.Header.Get("Ocp-Apim-Subscription-Key"))
			}

			switch {
			case r.Method == http.MethodPost:
				if !strings.HasSuffix(r.URL.Path, "/documentintelligence/documentModels/prebuilt-layout:analyze") {
					t.Errorf("Unexpected analyze path: %s", r.URL.Path)
				}
				if r.URL.Query().Get("outputContentFormat") != "markdown" {
					t.Errorf("Expected markdown output format, got '%s'", r.URL.Query().Get("outputContentFormat"))
				}
				var body analyzeRequest
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				decoded, _ := base64.StdEncoding.DecodeString(body.Base64Source)
				if string(decoded) != "%PDF-fake" {
					t.Errorf("Unexpected document payload: %q", decoded)
				}
				w.Header().Set("Operation-Location", server.URL+"/operations/1")
				w.WriteHeader(http.StatusAccepted)

			case r.Method == http.MethodGet:
				if atomic.AddInt32(&polls, 1) == 1 {
					json.NewEncoder(w).Encode(map[string]any{"status": "running"})
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"status": "succeeded",
					"analyzeResult": map[string]any{
						"content": "# Heading\n\nBody",
						"pages":   []map[string]any{{"pageNumber": 1}, {"pageNumber": 2}},
					},
				})
			}
		}))
		defer server.Close()

		p := newAzureTestProvider(t, server.URL+"/")
		defer p.Close()

		result, err := p.Convert(context.Background(), []byte("%PDF-fake"), "application/pdf")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Text != "# Heading\n\nBody" {
			t.Errorf("Unexpected text: %q", result.Text)
		}
		if result.PageCount != 2 {
			t.Errorf("Expected 2 pages, got %d", result.PageCount)
		}
		if result.Cost != 0.02 {
			t.Errorf("Expected cost 0.02, got %v", result.Cost)
		}
		if atomic.LoadInt32(&polls) != 2 {
			t.Errorf("Expected 2 polls, got %d", polls)
		}
	})

	t.Run("TextSkipsBackend", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Backend must not be called for text input")
		}))
		defer server.Close()

		p := newAzureTestProvider(t, server.URL)
		result, err := p.Convert(context.Background(), []byte("hello"), "txt")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if result.Text != "hello" || result.PageCount != 0 || result.Cost != 0 {
			t.Errorf("Unexpected result: %+v", result)
		}
	})

	t.Run("BackendFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"401","message":"Access denied"}}`))
		}))
		defer server.Close()

		p := newAzureTestProvider(t, server.URL)
		_, err := p.Convert(context.Background(), []byte("%PDF"), "pdf")
		if err == nil {
			t.Fatal("Expected error")
		}
		if !apperrors.Is(err, apperrors.KindDocumentProcessing) {
			t.Errorf("Expected document processing error, got %v", err)
		}
		if !apperrors.Is(err, apperrors.KindAuth) {
			t.Errorf("Expected nested auth error, got %v", err)
		}
		if !strings.Contains(err.Error(), "Access denied") {
			t.Errorf("Expected backend message in error, got %v", err)
		}
	})

	t.Run("AnalysisFailed", func(t *testing.T) {
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.Header().Set("Operation-Location", server.URL+"/operations/2")
				w.WriteHeader(http.StatusAccepted)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "failed",
				"error":  map[string]any{"code": "InvalidContent", "message": "corrupted file"},
			})
		}))
		defer server.Close()

		p := newAzureTestProvider(t, server.URL)
		_, err := p.Convert(context.Background(), []byte("%PDF"), "pdf")
		if !apperrors.Is(err, apperrors.KindDocumentProcessing) {
			t.Fatalf("Expected document processing error, got %v", err)
		}
		if !strings.Contains(err.Error(), "corrupted file") {
			t.Errorf("Expected failure reason in error, got %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		p := newAzureTestProvider(t, "http://127.0.0.1:1")
		_, err := p.Convert(context.Background(), []byte("x"), "epub")
		if !apperrors.Is(err, apperrors.KindUnsupportedFormat) {
			t.Errorf("Expected unsupported format error, got %v", err)
		}
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		t.Setenv("DOCUMENTINTELLIGENCE_ENDPOINT", "")
		t.Setenv("DOCUMENTINTELLIGENCE_API_KEY", "")
		_, err := provider.ResolveOptions(AzureOptions(), provider.Options{})
		if !apperrors.Is(err, apperrors.KindConfiguration) {
			t.Errorf("Expected configuration error, got %v", err)
		}
	})
}
