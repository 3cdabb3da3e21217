package llm

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Completer sends one system + user exchange and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (content string, err error)
}

// Gateway structures chunks of source text into section maps. It never returns a
// Go error: every failure is reported in the Result.
type Gateway struct {
	completer Completer
	parser    *Parser
	logger    *zap.SugaredLogger
}

// NewGateway creates a gateway over completer.
func NewGateway(completer Completer, logger *zap.SugaredLogger) (g *Gateway) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	g = &Gateway{
		completer: completer,
		parser:    NewParser(logger),
		logger:    logger,
	}
	return g
}

// Structure sends one chunk and parses the answer.
func (g *Gateway) Structure(ctx context.Context, req ChunkRequest) (result Result) {
	result.Index = req.Index
	log := g.logger.With("chunk", req.Index)

	payload := BuildUserPayload(req.Text, req.Tables)
	log.Debugw("sending chunk", "text_bytes", len(req.Text), "tables", len(req.Tables))

	raw, err := g.completer.Complete(ctx, req.SystemPrompt, payload)
	if err != nil {
		log.Warnw("chunk request failed", "error", err)
		result.Err = &GatewayError{Message: "request failed", Raw: err.Error(), Cause: err}
		return result
	}
	log.Debugw("received chunk response", "raw", Preview(raw))

	m, err := g.parser.Parse(raw)
	if err != nil {
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			gwErr = &GatewayError{Message: "failed to parse response", Raw: raw, Cause: err}
		}
		log.Warnw("chunk response unusable", "error", gwErr.Error(), "raw", Preview(raw))
		result.Err = gwErr
		return result
	}

	// A model that reports an error itself is a failed chunk, not content.
	if m.IsDegraded() {
		result.Err = &GatewayError{Message: "model reported an error: " + m.Error(), Raw: raw}
		return result
	}

	result.Map = m
	return result
}
