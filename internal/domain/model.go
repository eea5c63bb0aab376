package domain

import (
	"fmt"
	"slices"
)

// ModelName selects the hosted model used for every agent of a session.
type ModelName string

const (
	ModelMixtral ModelName = "mixtral-8x7b-32768"
	ModelLlama2  ModelName = "llama2-70b-4096"
	ModelGemma   ModelName = "gemma-7b-it"
)

// Models lists the selectable models in display order.
var Models = []ModelName{ModelMixtral, ModelLlama2, ModelGemma}

const (
	MinMaxTokens = 512
	MaxMaxTokens = 32768
)

// ModelConfig holds the session-wide model settings.
type ModelConfig struct {
	Model       ModelName `json:"model" yaml:"model"`
	Temperature float64   `json:"temperature" yaml:"temperature"`
	MaxTokens   int       `json:"maxTokens" yaml:"maxTokens"`
}

// DefaultModelConfig returns mixtral at temperature 0.7 with 4096 tokens.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{Model: ModelMixtral, Temperature: 0.7, MaxTokens: 4096}
}

// Validate checks the model against the allowed set and ranges.
func (m ModelConfig) Validate() error {
	if !slices.Contains(Models, m.Model) {
		return &ValidationError{Field: "model", Message: fmt.Sprintf("unknown model %q", m.Model)}
	}
	if m.Temperature < 0 || m.Temperature > 1 {
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0 and 1"}
	}
	if m.MaxTokens < MinMaxTokens || m.MaxTokens > MaxMaxTokens {
		return &ValidationError{
			Field:   "maxTokens",
			Message: fmt.Sprintf("maxTokens must be between %d and %d", MinMaxTokens, MaxMaxTokens),
		}
	}
	return nil
}
