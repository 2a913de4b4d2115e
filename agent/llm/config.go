package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	openrouterx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/openrouter"
)

// Config drives the optional fallback classifier. With Enabled unset the Router
// relies on the rule table alone and no model is built.
type Config struct {
	Enabled            bool          `envconfig:"ENABLED" split_words:"true" default:"false"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true"`
	ClassifierModel    string        `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"300"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" && strings.TrimSpace(c.ClassifierModel) == "" {
		return fmt.Errorf("%w: classifier model is required", contractx.ErrValidation)
	}
	return nil
}

// Classifier returns the model settings for the fallback intent classifier.
func (c Config) Classifier() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.ClassifierModel); v != "" {
		modelName = v
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
