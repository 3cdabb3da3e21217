package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/nikogura/doc-reformatter/pkg/extract"
	"github.com/nikogura/doc-reformatter/pkg/llm"
	"github.com/nikogura/doc-reformatter/pkg/merge"
	"github.com/nikogura/doc-reformatter/pkg/renderer"
	"github.com/nikogura/doc-reformatter/pkg/source"
	"github.com/nikogura/doc-reformatter/pkg/style"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent chunk requests.
const DefaultWorkers = 6

// ErrAllChunksFailed is returned when no chunk produced a section map. No document
// is rendered in that case.
var ErrAllChunksFailed = errors.New("all chunks failed") //nolint:gochecknoglobals // sentinel

// Structurer turns one chunk into a section map. *llm.Gateway is the production
// implementation.
type Structurer interface {
	Structure(ctx context.Context, req llm.ChunkRequest) (result llm.Result)
}

// GatewayFunc adapts a function to Structurer.
type GatewayFunc func(ctx context.Context, req llm.ChunkRequest) (result llm.Result)

// Structure calls f.
func (f GatewayFunc) Structure(ctx context.Context, req llm.ChunkRequest) (result llm.Result) {
	result = f(ctx, req)
	return result
}

// Options configures a Pipeline. Gateway is required.
type Options struct {
	Gateway   Structurer
	Styles    *style.Service
	ChunkSize int
	Workers   int
	Logger    *zap.SugaredLogger
}

// Request is one conversion.
type Request struct {
	Owner  string
	Client string
	// TemplateName identifies Template for style caching.
	TemplateName string
	Source       *source.Source
	Template     []byte
	// TemplatePrompt describes the expected sections. When empty and a template is
	// given, it is generated from the template.
	TemplatePrompt   string
	ConversionPrompt string
}

// Result is a finished conversion. Output.Degraded reports chunk failures, in which
// case Document holds only the error paragraph. When every chunk failed, Convert
// returns the degraded Output with ErrAllChunksFailed and Document is nil.
type Result struct {
	Document []byte
	Output   merge.Output
	Rules    *style.Rules
	Chunks   int
	Failed   int
}

// Pipeline runs extract, structure, merge, style and render.
type Pipeline struct {
	gateway   Structurer
	styles    *style.Service
	extractor *extract.Extractor
	merger    *merge.Merger
	renderer  *renderer.Renderer
	workers   int
	logger    *zap.SugaredLogger
}

// New creates a pipeline.
func New(opts Options) (p *Pipeline) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	styles := opts.Styles
	if styles == nil {
		styles = style.NewService(nil, logger)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	p = &Pipeline{
		gateway:   opts.Gateway,
		styles:    styles,
		extractor: extract.NewExtractor(opts.ChunkSize, logger),
		merger:    merge.NewMerger(logger),
		renderer:  renderer.NewRenderer(logger),
		workers:   workers,
		logger:    logger,
	}
	return p
}

// Convert reformats req.Source into a document styled after req.Template.
//
// Chunks are structured concurrently, at most workers at a time. A failed chunk does
// not stop the others; failures are collected and yield a degraded result. When
// every chunk fails Convert returns the degraded result without a document, along
// with ErrAllChunksFailed.
func (p *Pipeline) Convert(ctx context.Context, req Request) (res *Result, err error) {
	if req.Source == nil {
		err = &extract.ExtractionError{Cause: errors.New("no source given")}
		return res, err
	}
	start := time.Now()
	log := p.logger.With("source", req.Source.Name, "template", req.TemplateName)

	var content *extract.ExtractedContent
	switch req.Source.Kind {
	case source.KindDocx:
		content, err = p.extractor.FromDocx(req.Source.Data)
	default:
		content, err = p.extractor.FromText(req.Source.Text())
	}
	if err != nil {
		return res, err
	}

	templatePrompt := req.TemplatePrompt
	if strings.TrimSpace(templatePrompt) == "" && len(req.Template) > 0 {
		var sections []style.SectionDescription
		sections, err = style.DescribeTemplate(req.Template)
		if err != nil {
			err = errors.Wrap(err, "failed to describe template")
			return res, err
		}
		templatePrompt = style.SectionPrompt(sections)
	}
	systemPrompt := llm.BuildSystemPrompt(templatePrompt, req.ConversionPrompt)

	results := p.structure(ctx, content, systemPrompt)

	res = &Result{Chunks: len(results)}
	for _, r := range results {
		if !r.OK() {
			res.Failed++
		}
	}
	res.Output = p.merger.Merge(results, content)

	if res.Chunks > 0 && res.Failed == res.Chunks {
		err = errors.Wrapf(ErrAllChunksFailed, "%d of %d chunks failed, first: %s", res.Failed, res.Chunks, firstError(results))
		return res, err
	}

	res.Rules, err = p.styles.Rules(ctx, req.Owner, req.Client, req.TemplateName, req.Template)
	if err != nil {
		return nil, err
	}

	res.Document, err = p.renderer.Render(res.Output.Map, res.Output.SectionOrder, res.Rules, req.Template)
	if err != nil {
		err = errors.Wrap(err, "failed to render document")
		return nil, err
	}

	log.Infow("Converted document",
		"chunks", res.Chunks,
		"failed", res.Failed,
		"sections", len(res.Output.SectionOrder),
		"bytes", len(res.Document),
		"elapsed", time.Since(start).String(),
	)
	return res, err
}

// structure fans chunks out to the gateway and returns results indexed by chunk.
func (p *Pipeline) structure(ctx context.Context, content *extract.ExtractedContent, systemPrompt string) (results []llm.Result) {
	results = make([]llm.Result, len(content.Chunks))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, chunk := range content.Chunks {
		g.Go(func() error {
			results[i] = p.gateway.Structure(ctx, llm.ChunkRequest{
				Index:        i,
				SystemPrompt: systemPrompt,
				Text:         chunk.Text,
				Tables:       chunk.Tables,
			})
			// The gateway reports failures in the result.
			results[i].Index = i
			if !results[i].OK() && results[i].Err == nil {
				results[i].Err = &llm.GatewayError{Message: "empty result"}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func firstError(results []llm.Result) (msg string) {
	for _, r := range results {
		if r.Err != nil {
			msg = r.Err.Error()
			return msg
		}
	}
	return msg
}
