package provider

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	// anthropicMaxTokens bounds a single section. Sections are meant to be
	// a few thousand words at most; the stop token ends the run, not this.
	anthropicMaxTokens = 8192
)

// Anthropic implements Oracle against the Messages API.
type Anthropic struct {
	credential string
	baseURL    string
}

// NewAnthropic builds the Anthropic oracle with the given API key.
func NewAnthropic(credential string) *Anthropic {
	return &Anthropic{credential: credential, baseURL: anthropicBaseURL}
}

// WithBaseURL redirects API calls, used by tests.
func (a *Anthropic) WithBaseURL(url string) *Anthropic {
	a.baseURL = strings.TrimRight(url, "/")
	return a
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single-turn message request.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
	}
	headers := map[string]string{
		"x-api-key":         a.credential,
		"anthropic-version": anthropicVersion,
	}
	data, status, err := postJSON(ctx, a.baseURL+"/v1/messages", headers, payload)
	if err != nil {
		return "", &Error{Provider: IDAnthropic, Message: err.Error()}
	}
	var decoded anthropicResponse
	if unmarshalErr := json.Unmarshal(data, &decoded); unmarshalErr != nil && status == 200 {
		return "", &Error{Provider: IDAnthropic, StatusCode: status, Message: "malformed response body"}
	}
	if status != 200 {
		message := "request failed"
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return "", &Error{Provider: IDAnthropic, StatusCode: status, Message: message}
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &Error{Provider: IDAnthropic, StatusCode: status, Message: "no text content in response"}
	}
	return text.String(), nil
}
