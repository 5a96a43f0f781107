package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emredeveloper/invoice-ai-extractor/internal/document"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/provider"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// ErrParse marks a response that was not valid JSON even after repair.
// Parse failures are permanent; retrying the same document rarely helps.
var ErrParse = errors.New("provider returned malformed JSON")

// Engine orchestrates preprocessing, the provider call and JSON repair.
type Engine struct {
	pre      *document.Preprocessor
	provider provider.Provider
	logger   logger.Logger
}

// NewEngine constructs an engine bound to one provider instance.
func NewEngine(p provider.Provider, pre *document.Preprocessor, log logger.Logger) *Engine {
	return &Engine{
		pre:      pre,
		provider: p,
		logger:   log,
	}
}

// Provider exposes the engine's provider for collaborators such as the
// reviewer agent.
func (e *Engine) Provider() provider.Provider {
	return e.provider
}

// ProcessInvoice runs the full extraction for one file: preprocess,
// generate, repair, parse, attach metadata. Temporary page rasters are
// removed on every exit path.
func (e *Engine) ProcessInvoice(ctx context.Context, path, contentType string) (*models.RawExtraction, error) {
	in, err := e.pre.Prepare(path, contentType, e.provider.Name() == "local")
	if err != nil {
		return nil, err
	}
	defer in.Cleanup()

	e.logger.Debug("Prepared document",
		logger.String("file", path),
		logger.String("kind", string(in.Kind)),
		logger.Int("pages", in.PageCount),
	)

	raw, err := e.provider.GenerateJSON(ctx, in.Text, in.ImagePaths)
	if err != nil {
		return nil, err
	}

	repaired := RepairJSON(raw)

	var result models.RawExtraction
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		e.logger.Error("Failed to parse provider response",
			logger.String("file", path),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if result.GeneralFields == nil {
		result.GeneralFields = make(map[string]interface{})
	}

	result.Metadata = &models.ExtractionMetadata{
		PagesProcessed: in.PageCount,
		FileType:       in.FileType,
		Provider:       e.provider.Name(),
	}

	return &result, nil
}
