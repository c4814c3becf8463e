package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// Config selects and bounds the two interchangeable inference backends.
// The fast model answers routine requests; the deep model is used when a
// session has reasoning mode switched on.
type Config struct {
	BaseURL             string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey              string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	FastModel           string        `envconfig:"FAST_MODEL" split_words:"true" required:"true"`
	DeepModel           string        `envconfig:"DEEP_MODEL" split_words:"true" required:"true"`
	Temperature         float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	MaxCompletionTokens int           `envconfig:"MAX_COMPLETION_TOKENS" split_words:"true" default:"2000"`
	Timeout             time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	Retries             int           `envconfig:"RETRIES" split_words:"true" default:"2"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: gateway api key is required", contract.ErrValidation)
	}
	if strings.TrimSpace(c.FastModel) == "" || strings.TrimSpace(c.DeepModel) == "" {
		return fmt.Errorf("%w: both fast and deep models are required", contract.ErrValidation)
	}
	return nil
}

// ModelFor maps a backend id to its configured model name.
func (c Config) ModelFor(backend contract.BackendID) string {
	if backend == contract.BackendDeep {
		return strings.TrimSpace(c.DeepModel)
	}
	return strings.TrimSpace(c.FastModel)
}
