// Package provider abstracts the LLM completion APIs behind a single
// Oracle contract. Differences in request and response shape between
// providers are fully absorbed here; callers never branch on provider
// structure. No retries happen at this layer.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Known provider identifiers.
const (
	IDOpenAI    = "openai"
	IDAnthropic = "anthropic"
	IDGemini    = "gemini"
)

// IDs lists the supported provider identifiers.
func IDs() []string {
	return []string{IDOpenAI, IDAnthropic, IDGemini}
}

// Request carries one completion request. The User text is used verbatim;
// prompt assembly belongs to the caller.
type Request struct {
	Model  string
	System string
	User   string
}

// Oracle maps a (system, user) prompt pair to generated text.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Error reports a failed provider call with the status the provider
// returned. StatusCode is zero for transport failures.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// New builds an Oracle for the given provider identifier.
func New(id, credential string) (Oracle, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("provider: credential for %s is required", id)
	}
	switch strings.TrimSpace(id) {
	case IDOpenAI:
		return NewOpenAI(credential), nil
	case IDAnthropic:
		return NewAnthropic(credential), nil
	case IDGemini:
		return NewGemini(credential), nil
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", id)
	}
}

// httpClient is shared by the REST-backed providers. There is deliberately
// no per-call timeout here; cancellation flows through the context.
var httpClient = &http.Client{Timeout: 0}

func postJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}
