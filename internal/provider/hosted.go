package provider

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Hosted is the hosted vision API variant. All page images go in a single
// request; the caller's page cap is the only batching limit.
type Hosted struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      logger.Logger
}

// NewHosted creates the hosted vision provider.
func NewHosted(apiKey, model string, temperature float32, log logger.Logger) *Hosted {
	return &Hosted{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      log,
	}
}

func (h *Hosted) Name() string {
	return "hosted"
}

func (h *Hosted) GenerateJSON(ctx context.Context, content string, imagePaths []string) (string, error) {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: userPrompt(content),
		},
	}

	for _, path := range imagePaths {
		url, err := imageDataURL(path)
		if err != nil {
			return "", &Error{Kind: KindPermanent, Provider: h.Name(), Message: err.Error(), Err: err}
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       h.model,
		Temperature: h.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		h.logger.Error("Hosted provider call failed", logger.Error(err))
		return "", wrapAPIError(h.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindTransient, Provider: h.Name(), Message: "empty completion response"}
	}

	return resp.Choices[0].Message.Content, nil
}

// wrapAPIError extracts the HTTP status from go-openai error types before
// classification.
func wrapAPIError(name string, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapErr(name, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return wrapErr(name, reqErr.HTTPStatusCode, err)
	}

	return wrapErr(name, 0, err)
}
