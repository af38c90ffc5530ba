package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4.1"

// OpenAI is a Completer backed by the OpenAI Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI completer. Extra request options (such as a
// base URL for tests or proxies) are appended after the API key.
func NewOpenAI(apiKey, modelName string, maxTokens int, opts ...option.RequestOption) *OpenAI {
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	// Failures are not retried: a failed classification skips the email.
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAI{
		client:    openai.NewClient(reqOpts...),
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Complete sends one system+user exchange and returns the reply text.
func (o *OpenAI) Complete(ctx context.Context, req Completion) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("OpenAI API returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
