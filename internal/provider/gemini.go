package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini implements Oracle against the generateContent API.
type Gemini struct {
	credential string
	baseURL    string
}

// NewGemini builds the Gemini oracle with the given API key.
func NewGemini(credential string) *Gemini {
	return &Gemini{credential: credential, baseURL: geminiBaseURL}
}

// WithBaseURL redirects API calls, used by tests.
func (g *Gemini) WithBaseURL(url string) *Gemini {
	g.baseURL = strings.TrimRight(url, "/")
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete sends a single-turn generateContent request.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, req.Model)
	headers := map[string]string{"x-goog-api-key": g.credential}
	data, status, err := postJSON(ctx, url, headers, payload)
	if err != nil {
		return "", &Error{Provider: IDGemini, Message: err.Error()}
	}
	var decoded geminiResponse
	if unmarshalErr := json.Unmarshal(data, &decoded); unmarshalErr != nil && status == 200 {
		return "", &Error{Provider: IDGemini, StatusCode: status, Message: "malformed response body"}
	}
	if status != 200 {
		message := "request failed"
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return "", &Error{Provider: IDGemini, StatusCode: status, Message: message}
	}
	var text strings.Builder
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		break
	}
	if text.Len() == 0 {
		return "", &Error{Provider: IDGemini, StatusCode: status, Message: "no candidates in response"}
	}
	return text.String(), nil
}
