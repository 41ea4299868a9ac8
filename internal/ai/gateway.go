// Package ai provides a provider-agnostic completion gateway for curriculum
// and quiz generation.
package ai

import "context"

// TaskType defines the kind of AI task, used for logging and metrics.
type TaskType int

const (
	TaskCurriculum TaskType = iota
	TaskQuizQuestions
	TaskQuizAssessment
)

func (t TaskType) String() string {
	switch t {
	case TaskCurriculum:
		return "curriculum"
	case TaskQuizQuestions:
		return "quiz_questions"
	case TaskQuizAssessment:
		return "quiz_assessment"
	default:
		return "unknown"
	}
}

// HarmCategory names a content-safety category.
type HarmCategory string

const (
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// BlockThreshold is the probability at which a category is blocked.
type BlockThreshold string

const (
	BlockNone           BlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    BlockThreshold = "BLOCK_LOW_AND_ABOVE"
)

// SafetySetting pairs a harm category with its block threshold.
type SafetySetting struct {
	Category  HarmCategory   `json:"category" yaml:"category"`
	Threshold BlockThreshold `json:"threshold" yaml:"threshold"`
}

// DefaultSafetySettings blocks medium-and-above probability in every category.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmHateSpeech, Threshold: BlockMediumAndAbove},
		{Category: HarmSexuallyExplicit, Threshold: BlockMediumAndAbove},
		{Category: HarmDangerousContent, Threshold: BlockMediumAndAbove},
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion. A nil Temperature or
// TopP leaves the provider default in place; zero is sent as zero.
type CompletionRequest struct {
	Messages        []Message       `json:"messages"`
	Model           string          `json:"model,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopK            int             `json:"top_k,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	SafetySettings  []SafetySetting `json:"safety_settings,omitempty"`
	SearchGrounding bool            `json:"search_grounding,omitempty"`
	Task            TaskType        `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
//
// An empty Content with a non-empty BlockReason means the provider declined
// to answer for safety reasons. An empty Content without a BlockReason means
// the provider produced no usable text.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	BlockReason  string `json:"block_reason,omitempty"`
	Grounded     bool   `json:"grounded,omitempty"`
}

// Float returns a pointer to v, for the optional sampling fields of
// CompletionRequest.
func Float(v float64) *float64 {
	return &v
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Blocked reports whether the provider refused the request.
func (r CompletionResponse) Blocked() bool {
	return r.Content == "" && r.BlockReason != ""
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
// Providers never retry; a failed call is returned as an error.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
