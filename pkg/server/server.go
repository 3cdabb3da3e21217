package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikogura/doc-reformatter/pkg/docx"
	"github.com/nikogura/doc-reformatter/pkg/extract"
	"github.com/nikogura/doc-reformatter/pkg/logging"
	"github.com/nikogura/doc-reformatter/pkg/pipeline"
	"github.com/nikogura/doc-reformatter/pkg/source"
	"github.com/nikogura/doc-reformatter/pkg/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// OwnerHeader carries the requesting owner's identity.
	OwnerHeader = "X-Owner"
	// DefaultOwner is used when OwnerHeader is absent.
	DefaultOwner = "default"
	// OutputFilename is the attachment name of a converted document.
	OutputFilename = "reformatted_document.docx"
	// MaxUploadBytes caps a multipart request.
	MaxUploadBytes = 32 << 20
)

// Converter runs one conversion. *pipeline.Pipeline is the production implementation.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (res *pipeline.Result, err error)
}

// TemplateStore resolves stored templates and prompts. *store.Store is the production
// implementation.
type TemplateStore interface {
	FetchTemplate(ctx context.Context, owner, client, name string) (tpl *store.Template, err error)
	LoadPrompt(ctx context.Context, owner, client, name, kind string) (content string, err error)
}

// Server is the HTTP surface over the conversion pipeline.
type Server struct {
	converter Converter
	templates TemplateStore
	logger    *zap.SugaredLogger
	router    chi.Router
}

// New creates a server. templates may be nil, in which case templates must be uploaded
// with each request.
func New(converter Converter, templates TemplateStore, logger *zap.SugaredLogger) (s *Server) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s = &Server{converter: converter, templates: templates, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/convert", s.handleConvert)

	s.router = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() (h http.Handler) {
	h = s.router
	return h
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) (err error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		err = errors.Wrap(err, "failed to shut down server")
		return err
	}
	return err
}

func (s *Server) requestLogger(next http.Handler) (h http.Handler) {
	h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Infow("Request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"owner", logging.HashID(r.Header.Get(OwnerHeader)),
			"elapsed", time.Since(start).String(),
		)
	})
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	err := r.ParseMultipartForm(MaxUploadBytes)
	if err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		owner = DefaultOwner
	}

	req := pipeline.Request{
		Owner:            owner,
		Client:           strings.TrimSpace(r.FormValue("client")),
		TemplatePrompt:   r.FormValue("template_prompt"),
		ConversionPrompt: r.FormValue("conversion_prompt"),
	}

	req.Source, err = readSource(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status, err := s.resolveTemplate(r, &req)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	res, err := s.converter.Convert(r.Context(), req)
	if err != nil {
		var extractionErr *extract.ExtractionError
		switch {
		case errors.Is(err, pipeline.ErrAllChunksFailed), errors.As(err, &extractionErr):
			s.logger.Warnw("Conversion failed", "error", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			s.logger.Errorw("Conversion error", "error", err)
			http.Error(w, "conversion failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", docx.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename="+OutputFilename)
	if res.Output.Degraded() {
		w.Header().Set("X-Degraded", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Document)
}

// readSource takes the uploaded source_file, else the source_text field.
func readSource(r *http.Request) (src *source.Source, err error) {
	data, name, err := formFile(r, "source_file")
	if err != nil {
		return src, err
	}
	if data != nil {
		src = source.FromBytes(name, data)
		return src, err
	}

	text := r.FormValue("source_text")
	if strings.TrimSpace(text) == "" {
		err = errors.New("either source_file or source_text is required")
		return src, err
	}
	src = source.FromBytes("source_text", []byte(text))
	return src, err
}

// resolveTemplate reads an uploaded template file, else the stored template named by
// the template field. Stored prompts fill an empty template_prompt or conversion_prompt.
func (s *Server) resolveTemplate(r *http.Request, req *pipeline.Request) (status int, err error) {
	data, name, err := formFile(r, "template")
	if err != nil {
		status = http.StatusBadRequest
		return status, err
	}
	if data != nil {
		req.Template = data
		req.TemplateName = name
		return status, err
	}

	name = strings.TrimSpace(r.FormValue("template"))
	if name == "" {
		return status, err
	}
	if s.templates == nil {
		status = http.StatusBadRequest
		err = errors.New("no template store configured; upload the template file")
		return status, err
	}

	tpl, err := s.templates.FetchTemplate(r.Context(), req.Owner, req.Client, name)
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
		return status, err
	}
	if err != nil {
		status = http.StatusInternalServerError
		return status, err
	}
	req.Template = tpl.Data
	req.TemplateName = name

	if strings.TrimSpace(req.TemplatePrompt) == "" {
		prompt, promptErr := s.templates.LoadPrompt(r.Context(), req.Owner, req.Client, name, store.PromptTemplate)
		if promptErr == nil {
			req.TemplatePrompt = prompt
		}
	}
	if strings.TrimSpace(req.ConversionPrompt) == "" {
		prompt, promptErr := s.templates.LoadPrompt(r.Context(), req.Owner, req.Client, name, store.PromptConversion)
		if promptErr == nil {
			req.ConversionPrompt = prompt
		}
	}
	return status, err
}

// formFile returns the bytes of an uploaded file field, or nil when absent.
func formFile(r *http.Request, field string) (data []byte, name string, err error) {
	var file multipart.File
	var header *multipart.FileHeader
	file, header, err = r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		err = nil
		return data, name, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to read %s", field)
		return data, name, err
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		err = errors.Wrapf(err, "failed to read %s", field)
		return data, name, err
	}
	name = header.Filename
	return data, name, err
}
