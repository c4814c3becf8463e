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

// SearchConfig configures the web search adapter.
type SearchConfig struct {
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.tavily.com"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	MaxResults int           `envconfig:"MAX_RESULTS" split_words:"true" default:"5"`
}

// SearchClient calls a Tavily-style search API.
type SearchClient struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewSearchClient(cfg SearchConfig) (*SearchClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("search api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &SearchClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) (*searchResponse, error) {
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}

	body, err := json.Marshal(searchRequest{APIKey: c.apiKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("search http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

// RegisterSearchTool adds web.search to the registry.
func RegisterSearchTool(reg *Registry, client *SearchClient, timeout time.Duration) error {
	return reg.Register(Definition{
		Name: "web.search",
		Desc: "Search the web for up-to-date travel information.",
		Params: map[string]*schema.ParameterInfo{
			"query":       {Type: schema.String, Desc: "Search query", Required: true},
			"max_results": {Type: schema.Integer, Desc: "Maximum number of results"},
		},
		Timeout: timeout,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			maxResults := 0
			if n, ok := args["max_results"].(float64); ok {
				maxResults = int(n)
			}
			return client.Search(ctx, args["query"].(string), maxResults)
		},
	})
}
