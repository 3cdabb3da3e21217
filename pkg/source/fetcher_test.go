package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikogura/doc-reformatter/pkg/docx"
)

func docxBytes(t *testing.T) (data []byte) {
	t.Helper()
	doc := docx.New()
	doc.AppendParagraph(docx.NewParagraph("SUMMARY", docx.RunProps{Bold: true}, docx.ParagraphFormat{}))

	var err error
	data, err = doc.Bytes()
	if err != nil {
		t.Fatalf("Failed to build docx: %v", err)
	}
	return data
}

func TestFetchFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "source.txt")
	testContent := "NAME\nJane Doe"

	err := os.WriteFile(testFile, []byte(testContent), 0600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	src, err := fetchFromFile(testFile)
	if err != nil {
		t.Fatalf("Failed to fetch from file: %v", err)
	}

	if src.Text() != testContent {
		t.Errorf("Expected content '%s', got '%s'", testContent, src.Text())
	}
	if src.Kind != KindText {
		t.Errorf("Expected text source, got kind %d", src.Kind)
	}
	if src.Name != "source.txt" {
		t.Errorf("Expected name 'source.txt', got '%s'", src.Name)
	}
}

func TestFetchFromFileDocx(t *testing.T) {
	tmpDir := t.TempDir()
	// No extension: detection goes by content.
	testFile := filepath.Join(tmpDir, "upload")

	err := os.WriteFile(testFile, docxBytes(t), 0600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	src, err := fetchFromFile(testFile)
	if err != nil {
		t.Fatalf("Failed to fetch from file: %v", err)
	}
	if src.Kind != KindDocx {
		t.Errorf("Expected docx source, got kind %d", src.Kind)
	}
}

func TestFetchFromFileNonexistent(t *testing.T) {
	_, err := fetchFromFile("/nonexistent/file.txt")
	if err == nil {
		t.Error("Expected error fetching nonexistent file, got nil")
	}
}

func TestFetchFromFileEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	emptyFile := filepath.Join(tmpDir, "empty.txt")

	err := os.WriteFile(emptyFile, []byte("  \n"), 0600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err = fetchFromFile(emptyFile)
	if err == nil {
		t.Error("Expected error fetching empty file, got nil")
	}
}

func TestFetchFromURLHTML(t *testing.T) {
	testContent := "<html><head><style>p{color:red}</style></head><body><h1>Summary</h1><p>Builds &amp; ships.</p><script>alert('hi')</script></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testContent))
	}))
	defer server.Close()

	src, err := fetchFromURL(context.Background(), server.URL+"/profile")
	if err != nil {
		t.Fatalf("Failed to fetch from URL: %v", err)
	}

	expected := "Summary\nBuilds & ships."
	if src.Text() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, src.Text())
	}
	if src.Kind != KindText {
		t.Errorf("Expected text source, got kind %d", src.Kind)
	}
}

func TestFetchFromURLDocx(t *testing.T) {
	data := docxBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", docx.MimeType)
		_, _ = w.Write(data)
	}))
	defer server.Close()

	src, err := FetchWithContext(context.Background(), server.URL+"/resume.docx")
	if err != nil {
		t.Fatalf("Failed to fetch from URL: %v", err)
	}
	if src.Kind != KindDocx || len(src.Data) != len(data) {
		t.Errorf("Expected docx source of %d bytes, got kind %d with %d bytes", len(data), src.Kind, len(src.Data))
	}
	if src.Name != "resume.docx" {
		t.Errorf("Expected name 'resume.docx', got '%s'", src.Name)
	}
}

func TestFetchFromURL404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := fetchFromURL(context.Background(), server.URL)
	if err == nil {
		t.Error("Expected error for 404 response, got nil")
	}
}

func TestFetchFromURLTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		_, _ = w.Write([]byte("too slow"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := fetchFromURL(ctx, server.URL)
	if err == nil {
		t.Error("Expected timeout error, got nil")
	}
}

func TestFetch(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")

	err := os.WriteFile(testFile, []byte("Test"), 0600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	src, err := Fetch(testFile)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	if src.Text() != "Test" {
		t.Errorf("Expected 'Test', got '%s'", src.Text())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     []byte
		expected Kind
	}{
		{name: "zip magic", file: "upload", data: []byte("PK\x03\x04rest"), expected: KindDocx},
		{name: "docx extension", file: "Resume.DOCX", data: []byte("x"), expected: KindDocx},
		{name: "plain text", file: "notes.txt", data: []byte("NAME\nJane"), expected: KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.file, tt.data); got != tt.expected {
				t.Errorf("Expected kind %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple tags",
			input:    "<p>Hello <strong>world</strong></p>",
			expected: "Hello world",
		},
		{
			name:     "script tags",
			input:    "<p>Text</p><script>alert('hi')</script><p>More</p>",
			expected: "Text\nMore",
		},
		{
			name:     "style tags",
			input:    "<style>.class{color:red}</style><p>Content</p>",
			expected: "Content",
		},
		{
			name:     "line breaks",
			input:    "Line one<br>Line two<br/>",
			expected: "Line one\nLine two",
		},
		{
			name:     "no HTML",
			input:    "Plain text",
			expected: "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripHTML(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}
