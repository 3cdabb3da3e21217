package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/extract"
	"github.com/nikogura/doc-reformatter/pkg/llm"
	"github.com/nikogura/doc-reformatter/pkg/pipeline"
	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/nikogura/doc-reformatter/pkg/store"
	"github.com/pkg/errors"
)

type fakeConverter struct {
	req pipeline.Request
	res *pipeline.Result
	err error
}

func (f *fakeConverter) Convert(_ context.Context, req pipeline.Request) (res *pipeline.Result, err error) {
	f.req = req
	res, err = f.res, f.err
	return res, err
}

type fakeStore struct {
	templates map[string][]byte
	prompts   map[string]string
}

func (f *fakeStore) FetchTemplate(_ context.Context, owner, client, name string) (tpl *store.Template, err error) {
	data, ok := f.templates[owner+"/"+client+"/"+name]
	if !ok {
		err = store.ErrNotFound
		return tpl, err
	}
	tpl = &store.Template{Owner: owner, Client: client, Name: name, Data: data}
	return tpl, err
}

func (f *fakeStore) LoadPrompt(_ context.Context, owner, client, name, kind string) (content string, err error) {
	content, ok := f.prompts[owner+"/"+client+"/"+name+"/"+kind]
	if !ok {
		err = store.ErrNotFound
	}
	return content, err
}

type upload struct {
	field string
	name  string
	data  []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...upload) (req *http.Request) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		err := w.WriteField(k, v)
		if err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("Failed to create file part: %v", err)
		}
		_, _ = part.Write(f.data)
	}
	err := w.Close()
	if err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func okResult() (res *pipeline.Result) {
	m := section.NewMap()
	m.Set("summary", section.Text("ok"))
	res = &pipeline.Result{Document: []byte("docx"), Chunks: 1}
	res.Output.Map = m
	return res
}

func TestHealthz(t *testing.T) {
	s := New(&fakeConverter{}, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Errorf("Expected body ok, got '%s'", rec.Body.String())
	}
}

func TestConvertText(t *testing.T) {
	conv := &fakeConverter{res: okResult()}
	s := New(conv, nil, nil)

	req := multipartRequest(t, map[string]string{
		"source_text":       "SUMMARY\nok",
		"client":            "acme",
		"conversion_prompt": "Keep it short.",
	})
	req.Header.Set(OwnerHeader, "alice")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != docx.MimeType {
		t.Errorf("Expected content type %s, got %s", docx.MimeType, rec.Header().Get("Content-Type"))
	}
	expectedDisposition := "attachment; filename=" + OutputFilename
	if rec.Header().Get("Content-Disposition") != expectedDisposition {
		t.Errorf("Expected disposition %s, got %s", expectedDisposition, rec.Header().Get("Content-Disposition"))
	}
	if rec.Header().Get("X-Degraded") != "" {
		t.Error("Expected no degraded header")
	}
	if rec.Body.String() != "docx" {
		t.Errorf("Expected body docx, got '%s'", rec.Body.String())
	}

	if conv.req.Owner != "alice" || conv.req.Client != "acme" {
		t.Errorf("Unexpected owner/client: %s/%s", conv.req.Owner, conv.req.Client)
	}
	if conv.req.ConversionPrompt != "Keep it short." {
		t.Errorf("Expected conversion prompt, got '%s'", conv.req.ConversionPrompt)
	}
	if conv.req.Source == nil || conv.req.Source.Text() != "SUMMARY\nok" {
		t.Errorf("Unexpected source: %+v", conv.req.Source)
	}
}

func TestConvertUploads(t *testing.T) {
	conv := &fakeConverter{res: okResult()}
	s := New(conv, nil, nil)

	req := multipartRequest(t, nil,
		upload{field: "source_file", name: "cv.txt", data: []byte("SKILLS\nGo")},
		upload{field: "template", name: "house.docx", data: []byte("template bytes")},
	)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if conv.req.Owner != DefaultOwner {
		t.Errorf("Expected owner %s, got %s", DefaultOwner, conv.req.Owner)
	}
	if conv.req.Source.Name != "cv.txt" {
		t.Errorf("Expected source name cv.txt, got %s", conv.req.Source.Name)
	}
	if string(conv.req.Template) != "template bytes" || conv.req.TemplateName != "house.docx" {
		t.Errorf("Unexpected template: %s %q", conv.req.TemplateName, conv.req.Template)
	}
}

func TestConvertStoredTemplate(t *testing.T) {
	prompts := map[string]string{
		"alice/acme/house/" + store.PromptTemplate:   "stored prompt",
		"alice/acme/house/" + store.PromptConversion: "stored instructions",
	}
	templates := &fakeStore{
		templates: map[string][]byte{"alice/acme/house": []byte("stored template")},
		prompts:   prompts,
	}
	conv := &fakeConverter{res: okResult()}
	s := New(conv, templates, nil)

	req := multipartRequest(t, map[string]string{"source_text": "text", "client": "acme", "template": "house"})
	req.Header.Set(OwnerHeader, "alice")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if string(conv.req.Template) != "stored template" {
		t.Errorf("Expected stored template, got %q", conv.req.Template)
	}
	if conv.req.TemplatePrompt != "stored prompt" {
		t.Errorf("Expected stored prompt, got '%s'", conv.req.TemplatePrompt)
	}
	if conv.req.ConversionPrompt != "stored instructions" {
		t.Errorf("Expected stored conversion prompt, got '%s'", conv.req.ConversionPrompt)
	}

	// A prompt in the request wins over the stored one.
	req = multipartRequest(t, map[string]string{"source_text": "text", "client": "acme", "template": "house", "conversion_prompt": "Be brief."})
	req.Header.Set(OwnerHeader, "alice")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if conv.req.ConversionPrompt != "Be brief." {
		t.Errorf("Expected request conversion prompt, got '%s'", conv.req.ConversionPrompt)
	}

	// Another owner cannot see it.
	req = multipartRequest(t, map[string]string{"source_text": "text", "client": "acme", "template": "house"})
	req.Header.Set(OwnerHeader, "bob")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		err    error
		status int
	}{
		{
			name:   "missing source",
			fields: map[string]string{"client": "acme"},
			status: http.StatusBadRequest,
		},
		{
			name:   "named template without store",
			fields: map[string]string{"source_text": "text", "template": "house"},
			status: http.StatusBadRequest,
		},
		{
			name:   "all chunks failed",
			fields: map[string]string{"source_text": "text"},
			err:    errors.Wrap(pipeline.ErrAllChunksFailed, "1 of 1 chunks failed"),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "extraction error",
			fields: map[string]string{"source_text": "text"},
			err:    &extract.ExtractionError{Cause: errors.New("corrupt")},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "internal error",
			fields: map[string]string{"source_text": "text"},
			err:    errors.New("disk full"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeConverter{err: tt.err}, nil, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, multipartRequest(t, tt.fields))
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConvertDegraded(t *testing.T) {
	m := section.NewMap()
	m.Set(section.ErrorKey, section.Text("chunk 2: timeout"))
	res := &pipeline.Result{Document: []byte("docx"), Chunks: 2, Failed: 1}
	res.Output.Map = m
	res.Output.Errors = []string{"chunk 2: timeout"}

	s := New(&fakeConverter{res: res}, nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartRequest(t, map[string]string{"source_text": "text"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Degraded") != "true" {
		t.Error("Expected degraded header")
	}
}

func TestConvertEndToEnd(t *testing.T) {
	gateway := pipeline.GatewayFunc(func(_ context.Context, _ llm.ChunkRequest) (result llm.Result) {
		m := section.NewMap()
		m.Set("summary", section.Text("Seasoned engineer."))
		result.Map = m
		return result
	})
	s := New(pipeline.New(pipeline.Options{Gateway: gateway}), nil, nil)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req := multipartRequest(t, map[string]string{"source_text": "SUMMARY\nSeasoned engineer."})
	httpReq, err := http.NewRequest(http.MethodPost, srv.URL+"/convert", req.Body)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", req.Header.Get("Content-Type"))

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	doc, err := docx.Open(data)
	if err != nil {
		t.Fatalf("Failed to open returned document: %v", err)
	}
	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	if strings.Join(texts, "|") != "Summary|Seasoned engineer." {
		t.Errorf("Unexpected document paragraphs: %v", texts)
	}
}
