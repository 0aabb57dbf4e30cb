package provider

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Oracle using the official openai-go SDK (chat
// completions).
type OpenAI struct {
	opts []option.RequestOption
}

// NewOpenAI builds the OpenAI oracle with the given API key.
func NewOpenAI(credential string, extra ...option.RequestOption) *OpenAI {
	opts := append([]option.RequestOption{option.WithAPIKey(credential)}, extra...)
	return &OpenAI{opts: opts}
}

// Complete sends a single system+user chat completion.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	client := openai.NewClient(o.opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &Error{Provider: IDOpenAI, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", &Error{Provider: IDOpenAI, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: IDOpenAI, Message: "empty choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}
