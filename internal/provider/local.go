package provider

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// localTemperature biases the self-hosted model toward deterministic
// extraction.
const localTemperature = 0.1

// generalFieldOrder drives the first-non-null merge; scan order equals
// page order, assuming earlier pages carry authoritative header data.
var generalFieldOrder = []string{
	"invoice_number",
	"date",
	"supplier_name",
	"total_amount",
	"currency",
	"tax_amount",
	"tax_rate",
	"category",
}

// Local is the self-hosted OpenAI-compatible variant. It enforces a
// max-images-per-request bound: page counts within the bound go out as a
// single request, anything above is split into sequential single-image
// requests whose results are merged.
type Local struct {
	client    *openai.Client
	model     string
	maxImages int
	logger    logger.Logger
}

// NewLocal creates a provider against an OpenAI-compatible server such as
// LM Studio or vLLM.
func NewLocal(baseURL, model string, maxImages int, log logger.Logger) *Local {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = baseURL

	if maxImages <= 0 {
		maxImages = 3
	}

	return &Local{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxImages: maxImages,
		logger:    log,
	}
}

func (l *Local) Name() string {
	return "local"
}

func (l *Local) GenerateJSON(ctx context.Context, content string, imagePaths []string) (string, error) {
	if len(imagePaths) <= l.maxImages {
		return l.complete(ctx, content, imagePaths)
	}

	// Page count exceeds the per-request bound: one request per page,
	// issued sequentially to bound memory and upstream load.
	results := make([]pageResult, 0, len(imagePaths))
	for i, path := range imagePaths {
		raw, err := l.complete(ctx, content, []string{path})
		if err != nil {
			return "", err
		}

		var page pageResult
		if err := json.Unmarshal([]byte(raw), &page); err != nil {
			// Unparsable pages are skipped rather than failing the
			// whole document.
			l.logger.Warn("Skipping unparsable page result",
				logger.Int("page", i+1),
				logger.Error(err),
			)
			continue
		}
		results = append(results, page)
	}

	merged := mergePages(results)
	out, err := json.Marshal(merged)
	if err != nil {
		return "", &Error{Kind: KindPermanent, Provider: l.Name(), Message: err.Error(), Err: err}
	}
	return string(out), nil
}

func (l *Local) complete(ctx context.Context, content string, imagePaths []string) (string, error) {
	var userMsg openai.ChatCompletionMessage
	if len(imagePaths) == 0 {
		userMsg = openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: userPrompt(content),
		}
	} else {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: userPrompt(content)},
		}
		for _, path := range imagePaths {
			url, err := imageDataURL(path)
			if err != nil {
				return "", &Error{Kind: KindPermanent, Provider: l.Name(), Message: err.Error(), Err: err}
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
		}
		userMsg = openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: localTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			userMsg,
		},
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		l.logger.Error("Local provider call failed", logger.Error(err))
		return "", wrapAPIError(l.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindTransient, Provider: l.Name(), Message: "empty completion response"}
	}

	return resp.Choices[0].Message.Content, nil
}

type pageResult struct {
	GeneralFields map[string]interface{}   `json:"general_fields"`
	Items         []map[string]interface{} `json:"items"`
}

// mergePages combines per-page extractions: for each general field the
// first non-null value in page order wins, items are concatenated.
func mergePages(pages []pageResult) pageResult {
	if len(pages) == 1 {
		return pages[0]
	}

	merged := pageResult{
		GeneralFields: make(map[string]interface{}),
		Items:         make([]map[string]interface{}, 0),
	}

	for _, field := range generalFieldOrder {
		for _, page := range pages {
			if v, ok := page.GeneralFields[field]; ok && v != nil {
				merged.GeneralFields[field] = v
				break
			}
		}
	}

	for _, page := range pages {
		merged.Items = append(merged.Items, page.Items...)
	}

	return merged
}
