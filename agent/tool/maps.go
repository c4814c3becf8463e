package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const maxToolResponseBytes = 2 << 20

// MapsConfig configures the map service adapter.
type MapsConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// MapsClient is a thin REST adapter over the map provider: geocoding and
// route planning. It never renders anything; rendering is the presentation
// layer's job.
type MapsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewMapsClient(cfg MapsConfig) (*MapsClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("maps base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid maps base url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("maps api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MapsClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *MapsClient) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build maps request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute maps request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseBytes))
	if err != nil {
		return fmt.Errorf("read maps response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("maps http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode maps response: %w", err)
	}
	return nil
}

type geocodeResponse struct {
	Geocodes []struct {
		Location string `json:"location"`
		Level    string `json:"level"`
		City     string `json:"city"`
	} `json:"geocodes"`
}

type routeResponse struct {
	Route struct {
		Paths []struct {
			Distance string `json:"distance"`
			Duration string `json:"duration"`
			Steps    []struct {
				Instruction string `json:"instruction"`
			} `json:"steps"`
		} `json:"paths"`
	} `json:"route"`
}

// RegisterMapsTools adds maps.geocode and maps.route to the registry.
func RegisterMapsTools(reg *Registry, client *MapsClient, timeout time.Duration) error {
	geocode := Definition{
		Name: "maps.geocode",
		Desc: "Resolve a place name or address to coordinates.",
		Params: map[string]*schema.ParameterInfo{
			"address": {Type: schema.String, Desc: "Place name or address to resolve", Required: true},
			"city":    {Type: schema.String, Desc: "City to scope the lookup"},
		},
		Timeout: timeout,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query := url.Values{}
			query.Set("address", args["address"].(string))
			if city, ok := args["city"].(string); ok && city != "" {
				query.Set("city", city)
			}
			var out geocodeResponse
			if err := client.get(ctx, "/v3/geocode/geo", query, &out); err != nil {
				return nil, err
			}
			if len(out.Geocodes) == 0 {
				return nil, fmt.Errorf("no geocode result for %q", args["address"])
			}
			return out, nil
		},
	}
	if err := reg.Register(geocode); err != nil {
		return err
	}

	route := Definition{
		Name: "maps.route",
		Desc: "Plan a route between two coordinate pairs.",
		Params: map[string]*schema.ParameterInfo{
			"origin":      {Type: schema.String, Desc: "Origin as lng,lat", Required: true},
			"destination": {Type: schema.String, Desc: "Destination as lng,lat", Required: true},
			"mode":        {Type: schema.String, Desc: "driving, walking or transit (default driving)"},
		},
		Timeout: timeout,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			mode := "driving"
			if m, ok := args["mode"].(string); ok && m != "" {
				mode = m
			}
			query := url.Values{}
			query.Set("origin", args["origin"].(string))
			query.Set("destination", args["destination"].(string))
			var out routeResponse
			if err := client.get(ctx, "/v3/direction/"+mode, query, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
	return reg.Register(route)
}
