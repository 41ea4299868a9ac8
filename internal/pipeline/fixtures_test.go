package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

// twoModuleDoc has two modules, three steps and no resources.
const twoModuleDoc = `{
  "skill": "Rust",
  "experienceLevel": "beginner",
  "curriculum": {
    "title": "Rust from Zero",
    "description": "Learn the Rust fundamentals.",
    "modules": [
      {
        "title": "Getting Started",
        "description": "Install the toolchain and write a first program.",
        "steps": [
          {"title": "Install rustup", "description": "Set up the toolchain."},
          {"title": "Hello, world", "description": "Build and run with cargo."}
        ],
        "assignment": {"title": "CLI greeter", "description": "Write a program that greets its first argument."}
      },
      {
        "title": "Ownership",
        "description": "Moves, borrows and lifetimes.",
        "steps": [
          {"title": "Borrowing", "description": "Shared and mutable references."}
        ]
      }
    ]
  }
}`

// fourStepDoc is a second curriculum for the same skill with four steps.
const fourStepDoc = `{
  "skill": "Rust",
  "experienceLevel": "intermediate",
  "curriculum": {
    "title": "Rust in Practice",
    "description": "Idiomatic Rust.",
    "modules": [
      {
        "title": "Traits",
        "description": "Shared behavior.",
        "steps": [
          {"title": "Defining traits", "description": "d"},
          {"title": "Generics", "description": "d"},
          {"title": "Trait objects", "description": "d"},
          {"title": "Iterators", "description": "d"}
        ]
      }
    ]
  }
}`

// fencedTwoModuleDoc is twoModuleDoc inside a json fence with trailing
// commas.
const fencedTwoModuleDoc = "```json\n" + `{
  "skill": "Rust",
  "experienceLevel": "beginner",
  "curriculum": {
    "title": "Rust from Zero",
    "description": "Learn the Rust fundamentals.",
    "modules": [
      {
        "title": "Getting Started",
        "description": "Install the toolchain and write a first program.",
        "steps": [
          {"title": "Install rustup", "description": "Set up the toolchain."},
          {"title": "Hello, world", "description": "Build and run with cargo."},
        ],
        "assignment": {"title": "CLI greeter", "description": "Write a program that greets its first argument."},
      },
      {
        "title": "Ownership",
        "description": "Moves, borrows and lifetimes.",
        "steps": [
          {"title": "Borrowing", "description": "Shared and mutable references."},
        ],
      },
    ],
  }
}` + "\n```"

type harness struct {
	orch     *pipeline.Orchestrator
	provider *ai.MockProvider
	store    *store.MemoryStore
	events   *pipeline.MemoryEventLogger
}

func newHarness(t *testing.T, provider *ai.MockProvider, opts ...func(*pipeline.Config)) *harness {
	t.Helper()

	reg := ai.NewRegistry()
	reg.Register("mock", provider)

	h := &harness{
		provider: provider,
		store:    store.NewMemoryStore(),
		events:   pipeline.NewMemoryEventLogger(),
	}
	cfg := pipeline.Config{
		Providers: reg,
		Profile:   curriculum.DefaultProfile(),
		Store:     h.store,
		Events:    h.events,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	orch, err := pipeline.New(cfg)
	require.NoError(t, err)
	h.orch = orch
	return h
}

// saveDoc saves doc for user and returns the curriculum and skill ids.
func (h *harness) saveDoc(t *testing.T, user, doc string) (string, string) {
	t.Helper()
	id, err := h.orch.Save(context.Background(), user, []byte(doc), nil)
	require.NoError(t, err)
	c, err := h.store.GetCurriculum(context.Background(), id)
	require.NoError(t, err)
	return id, c.SkillID
}

type recorder struct {
	states []pipeline.State
}

func (r *recorder) observe(s pipeline.State) {
	r.states = append(r.states, s)
}

func lastPrompt(t *testing.T, p *ai.MockProvider) string {
	t.Helper()
	require.NotNil(t, p.LastRequest, "provider was not called")
	require.Len(t, p.LastRequest.Messages, 1)
	return p.LastRequest.Messages[0].Content
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
