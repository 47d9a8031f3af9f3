package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	langpkg "subgen/internal/language"
)

const gptSystemPrompt = "You are a professional subtitle translator. Translate the user's subtitle line into %s. " +
	"Reply with the translation only, keep it on one line, and do not add quotes or notes."

type gptProvider struct {
	endpoint string
	key      string
	model    string
	t        *transport
}

func newGPTProvider(baseURL, key, model string, t *transport) (*gptProvider, error) {
	endpoint, err := url.JoinPath(strings.TrimSpace(baseURL), "chat", "completions")
	if err != nil {
		return nil, fmt.Errorf("chat url: %w", err)
	}
	return &gptProvider{endpoint: endpoint, key: key, model: model, t: t}, nil
}

func (p *gptProvider) Kind() Kind { return KindGPT }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *gptProvider) Translate(ctx context.Context, text, target string) (string, error) {
	payload := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(gptSystemPrompt, langpkg.DisplayName(target))},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gpt: encode body: %w", err)
	}

	var translated string
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.key)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	decode := func(body []byte) error {
		var completion chatCompletionResponse
		if err := json.Unmarshal(body, &completion); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if completion.Error != nil {
			return fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))
		}
		for _, choice := range completion.Choices {
			if content := firstNonEmpty(choice.Message.Content, choice.Text); content != "" {
				translated = content
				return nil
			}
		}
		return errors.New("empty completion: " + summarizeSnippet(string(body)))
	}
	if err := p.t.do(ctx, "gpt translate", build, decode); err != nil {
		return "", err
	}
	return translated, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
