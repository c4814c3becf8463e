package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// CodeConfig configures the sandboxed code runner adapter. Execution itself
// happens in an external runner service; the core only ships source over.
type CodeConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type CodeClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCodeClient(cfg CodeConfig) (*CodeClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("code runner base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CodeClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type codeRunRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type codeRunResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (c *CodeClient) Run(ctx context.Context, language, source string) (*codeRunResponse, error) {
	body, err := json.Marshal(codeRunRequest{Language: language, Source: source})
	if err != nil {
		return nil, fmt.Errorf("marshal code request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build code request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute code request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read code response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("code runner http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed codeRunResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode code response: %w", err)
	}
	if parsed.ExitCode != 0 {
		return nil, fmt.Errorf("code exited with status %d: %s", parsed.ExitCode, strings.TrimSpace(parsed.Stderr))
	}
	return &parsed, nil
}

// RegisterCodeTool adds code.run to the registry. Code execution is never
// retried.
func RegisterCodeTool(reg *Registry, client *CodeClient, timeout time.Duration) error {
	return reg.Register(Definition{
		Name: "code.run",
		Desc: "Run a short script in the sandboxed runner, e.g. for budget math or data shaping.",
		Params: map[string]*schema.ParameterInfo{
			"source":   {Type: schema.String, Desc: "Source code to execute", Required: true},
			"language": {Type: schema.String, Desc: "Language, defaults to python"},
		},
		Timeout: timeout,
		Retries: 0,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			language := "python"
			if l, ok := args["language"].(string); ok && l != "" {
				language = l
			}
			return client.Run(ctx, language, args["source"].(string))
		},
	})
}
