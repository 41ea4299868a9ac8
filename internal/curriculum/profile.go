package curriculum

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
)

// Profile holds the generation settings sent with every completion call.
type Profile struct {
	Model           string             `yaml:"model"`
	Temperature     float64            `yaml:"temperature"`
	TopK            int                `yaml:"top_k"`
	TopP            float64            `yaml:"top_p"`
	MaxOutputTokens int                `yaml:"max_output_tokens"`
	SearchGrounding bool               `yaml:"search_grounding"`
	SafetySettings  []ai.SafetySetting `yaml:"safety_settings"`
}

// DefaultProfile returns the settings used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		Temperature:     0.7,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 8192,
		SearchGrounding: true,
		SafetySettings:  ai.DefaultSafetySettings(),
	}
}

// LoadProfile reads a YAML profile. Fields absent from the file keep their
// defaults. An empty path or a missing file yields DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("generation profile not found, using defaults", "path", path)
		return p, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("reading generation profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing generation profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("generation profile %s: %w", path, err)
	}

	slog.Info("generation profile loaded", "path", path, "temperature", p.Temperature, "max_output_tokens", p.MaxOutputTokens)
	return p, nil
}

// Validate checks the profile values are within the ranges providers accept.
func (p Profile) Validate() error {
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p %v out of range [0, 1]", p.TopP)
	}
	if p.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", p.TopK)
	}
	if p.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", p.MaxOutputTokens)
	}
	for _, s := range p.SafetySettings {
		if s.Category == "" || s.Threshold == "" {
			return fmt.Errorf("safety setting needs category and threshold, got %+v", s)
		}
	}
	return nil
}

// Request builds a completion request for a single user prompt.
func (p Profile) Request(task ai.TaskType, prompt string) ai.CompletionRequest {
	return ai.CompletionRequest{
		Messages:        []ai.Message{{Role: "user", Content: prompt}},
		Model:           p.Model,
		MaxTokens:       p.MaxOutputTokens,
		Temperature:     ai.Float(p.Temperature),
		TopK:            p.TopK,
		TopP:            ai.Float(p.TopP),
		SafetySettings:  p.SafetySettings,
		SearchGrounding: p.SearchGrounding && task == ai.TaskCurriculum,
		Task:            task,
	}
}
