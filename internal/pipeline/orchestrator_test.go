package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/pipeline"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

func TestNew_ConfigErrors(t *testing.T) {
	reg := ai.NewRegistry()
	reg.Register("mock", ai.NewMockProvider(twoModuleDoc))

	tests := []struct {
		name string
		cfg  pipeline.Config
	}{
		{"no registry", pipeline.Config{Store: store.NewMemoryStore(), Profile: curriculum.DefaultProfile()}},
		{"empty registry", pipeline.Config{Providers: ai.NewRegistry(), Store: store.NewMemoryStore(), Profile: curriculum.DefaultProfile()}},
		{"no store", pipeline.Config{Providers: reg, Profile: curriculum.DefaultProfile()}},
		{"invalid profile", pipeline.Config{Providers: reg, Store: store.NewMemoryStore()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGenerate_Beginner(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
	rec := &recorder{}

	doc, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "", rec.observe)
	require.NoError(t, err)

	require.Len(t, doc.Curriculum.Modules, 2)
	assert.Equal(t, 3, doc.Curriculum.TotalSteps())
	for _, m := range doc.Curriculum.Modules {
		for _, s := range m.Steps {
			assert.Empty(t, s.Resources)
		}
	}

	assert.Equal(t, []pipeline.State{
		pipeline.StateReceivedRequest,
		pipeline.StateValidated,
		pipeline.StatePromptBuilt,
		pipeline.StateModelInvoked,
		pipeline.StateSanitized,
		pipeline.StateSchemaValidated,
		pipeline.StateResponded,
	}, rec.states)

	prompt := lastPrompt(t, h.provider)
	assert.Contains(t, prompt, "Rust")
	assert.Contains(t, prompt, "beginner")

	req := h.provider.LastRequest
	assert.Equal(t, ai.TaskCurriculum, req.Task)
	assert.True(t, req.SearchGrounding)
	assert.Len(t, req.SafetySettings, 4)
	assert.Equal(t, 8192, req.MaxTokens)

	assert.Equal(t, 0, h.store.Writes(), "generation never persists")
	assert.Equal(t, []string{pipeline.EventCurriculumGenerated}, h.events.Types())
}

func TestGenerate_CustomWithoutContext(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(twoModuleDoc))

	doc, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"custom"}`), "", nil)
	require.NoError(t, err)
	assert.Len(t, doc.Curriculum.Modules, 2)
	assert.Contains(t, lastPrompt(t, h.provider), "slightly above beginner")
}

func TestGenerate_CustomWithAssessmentContext(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"quizResults", `{"skill":"Rust","experienceLevel":"custom","quizResults":"Knows C well, new to ownership."}`},
		{"assessmentContext", `{"skill":"Rust","experienceLevel":"custom","assessmentContext":"Knows C well, new to ownership."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
			_, err := h.orch.Generate(context.Background(), []byte(tt.body), "", nil)
			require.NoError(t, err)

			prompt := lastPrompt(t, h.provider)
			assert.Contains(t, prompt, "Knows C well, new to ownership.")
			assert.NotContains(t, prompt, "slightly above beginner")
		})
	}
}

func TestGenerate_FencedOutputMatchesClean(t *testing.T) {
	clean := newHarness(t, ai.NewMockProvider(twoModuleDoc))
	fenced := newHarness(t, ai.NewMockProvider(fencedTwoModuleDoc))
	body := []byte(`{"skill":"Rust","experienceLevel":"beginner"}`)

	want, err := clean.orch.Generate(context.Background(), body, "", nil)
	require.NoError(t, err)
	got, err := fenced.orch.Generate(context.Background(), body, "", nil)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestGenerate_ContentBlocked(t *testing.T) {
	h := newHarness(t, ai.NewBlockedMockProvider("HARASSMENT"))
	rec := &recorder{}

	_, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "", rec.observe)

	var perr *pipeline.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.ContentBlocked, perr.Kind)
	assert.Equal(t, "HARASSMENT", perr.Reason)
	assert.Equal(t, http.StatusBadRequest, perr.Kind.HTTPStatus())
	assert.Equal(t, pipeline.StateErrored, rec.states[len(rec.states)-1])
	assert.NotContains(t, rec.states, pipeline.StateModelInvoked)
	assert.Equal(t, 0, h.store.Writes())
	assert.Equal(t, []string{pipeline.EventGenerationFailed}, h.events.Types())
}

func TestGenerate_BadRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields bool
	}{
		{"not json", `skill=Rust`, false},
		{"empty object", `{}`, true},
		{"blank skill", `{"skill":"   ","experienceLevel":"beginner"}`, true},
		{"unknown level", `{"skill":"Rust","experienceLevel":"expert"}`, true},
		{"skill wrong type", `{"skill":42,"experienceLevel":"beginner"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
			rec := &recorder{}

			_, err := h.orch.Generate(context.Background(), []byte(tt.body), "", rec.observe)

			var perr *pipeline.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, pipeline.BadRequest, perr.Kind)
			assert.Equal(t, tt.wantFields, len(perr.Fields) > 0)
			assert.Equal(t, 0, h.provider.Calls(), "invalid requests never reach the model")
			assert.Equal(t, []pipeline.State{pipeline.StateReceivedRequest, pipeline.StateErrored}, rec.states)
		})
	}
}

func TestGenerate_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *ai.MockProvider
	}{
		{"transport error", &ai.MockProvider{Err: errors.New("dial tcp: connection refused")}},
		{"empty text", ai.NewMockProvider("")},
		{"whitespace only", ai.NewMockProvider("  \n ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.provider)

			_, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "", nil)

			var perr *pipeline.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, pipeline.UpstreamUnavailable, perr.Kind)
			assert.Equal(t, http.StatusServiceUnavailable, perr.Kind.HTTPStatus())
			assert.NotContains(t, perr.Message, "connection refused", "internal detail stays out of the message")
			assert.Equal(t, 1, h.provider.Calls(), "no retries")
		})
	}
}

func TestGenerate_InvalidOutput(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantKind   pipeline.Kind
		wantFields bool
	}{
		{"prose", "Here is your curriculum: modules...", pipeline.MalformedOutput, false},
		{"truncated", `{"skill":"Rust","curriculum":{`, pipeline.MalformedOutput, false},
		{"missing modules", `{"skill":"Rust","experienceLevel":"beginner","curriculum":{"title":"t","description":"d"}}`, pipeline.SchemaViolation, true},
		{"relative url", `{"skill":"Rust","experienceLevel":"beginner","curriculum":{"title":"t","description":"d","modules":[{"title":"m","description":"d","steps":[{"title":"s","description":"d","resources":[{"title":"r","url":"/docs/intro"}]}]}]}}`, pipeline.SchemaViolation, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(tt.output))

			_, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "", nil)

			var perr *pipeline.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantKind, perr.Kind)
			assert.Equal(t, http.StatusBadGateway, perr.Kind.HTTPStatus())
			assert.Equal(t, tt.wantFields, len(perr.Fields) > 0)
			assert.NotContains(t, perr.Message, tt.output)
		})
	}
}

// ctxProvider fails when the context it is given is already done.
type ctxProvider struct {
	ai.MockProvider
}

func (p *ctxProvider) Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return ai.CompletionResponse{}, err
	}
	return p.MockProvider.Complete(ctx, req)
}

func TestGenerate_ClientDisconnectDoesNotCancelModelCall(t *testing.T) {
	p := &ctxProvider{MockProvider: ai.MockProvider{Response: twoModuleDoc}}
	reg := ai.NewRegistry()
	reg.Register("ctx", p)
	orch, err := pipeline.New(pipeline.Config{
		Providers: reg,
		Profile:   curriculum.DefaultProfile(),
		Store:     store.NewMemoryStore(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orch.Generate(ctx, []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "", nil)
	assert.NoError(t, err)
}

func TestGenerate_Quota(t *testing.T) {
	quota := ai.NewInMemoryQuota(1)
	h := newHarness(t, ai.NewMockProvider(twoModuleDoc), func(c *pipeline.Config) { c.Quota = quota })
	body := []byte(`{"skill":"Rust","experienceLevel":"beginner"}`)

	_, err := h.orch.Generate(context.Background(), body, "user-1", nil)
	require.NoError(t, err)

	used, _, err := quota.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Positive(t, used)

	_, err = h.orch.Generate(context.Background(), body, "user-1", nil)
	assert.Equal(t, pipeline.QuotaExceeded, pipeline.KindOf(err))
	assert.Equal(t, 1, h.provider.Calls())

	// Anonymous callers are not metered.
	_, err = h.orch.Generate(context.Background(), body, "", nil)
	assert.NoError(t, err)
}

// cancelingProvider cancels the caller's context mid-call, like a client
// disconnecting while the model is still generating.
type cancelingProvider struct {
	ai.MockProvider
	cancel context.CancelFunc
}

func (p *cancelingProvider) Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	p.cancel()
	return p.MockProvider.Complete(ctx, req)
}

// ctxQuota refuses to record on a done context.
type ctxQuota struct {
	*ai.InMemoryQuota
}

func (q ctxQuota) Record(ctx context.Context, caller string, tokens int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.InMemoryQuota.Record(ctx, caller, tokens)
}

func TestGenerate_QuotaRecordedAfterClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quota := ctxQuota{ai.NewInMemoryQuota(1_000_000)}
	p := &cancelingProvider{MockProvider: ai.MockProvider{Response: twoModuleDoc}, cancel: cancel}
	reg := ai.NewRegistry()
	reg.Register("cancel", p)
	orch, err := pipeline.New(pipeline.Config{
		Providers: reg,
		Profile:   curriculum.DefaultProfile(),
		Store:     store.NewMemoryStore(),
		Quota:     quota,
	})
	require.NoError(t, err)

	_, err = orch.Generate(ctx, []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "user-1", nil)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	used, _, err := quota.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Positive(t, used)
}

func TestSave_Unauthenticated(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"valid document", twoModuleDoc},
		{"garbage body", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(twoModuleDoc))

			_, err := h.orch.Save(context.Background(), "", []byte(tt.body), nil)

			var perr *pipeline.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, pipeline.AuthenticationRequired, perr.Kind)
			assert.Equal(t, http.StatusUnauthorized, perr.Kind.HTTPStatus())
			assert.Equal(t, 0, h.store.Writes(), "no writes without identity")
		})
	}
}

func TestSave_TwiceSameSkill(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
	rec := &recorder{}

	first, err := h.orch.Save(context.Background(), "user-1", []byte(twoModuleDoc), rec.observe)
	require.NoError(t, err)
	second, err := h.orch.Save(context.Background(), "user-1", []byte(fourStepDoc), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, h.store.CountSkills())

	c1, err := h.store.GetCurriculum(context.Background(), first)
	require.NoError(t, err)
	c2, err := h.store.GetCurriculum(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, c1.SkillID, c2.SkillID)

	sk, err := h.store.GetSkill(context.Background(), c1.SkillID)
	require.NoError(t, err)
	assert.Equal(t, 4, sk.TotalSteps)
	assert.Equal(t, "intermediate", sk.ExperienceLevel)

	assert.Equal(t, []pipeline.State{
		pipeline.StateReceivedRequest,
		pipeline.StateValidated,
		pipeline.StatePersisted,
		pipeline.StateResponded,
	}, rec.states)
}

func TestSave_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing curriculum", `{"skill":"Rust","experienceLevel":"beginner"}`},
		{"blank skill", strings.Replace(twoModuleDoc, `"skill": "Rust"`, `"skill": " "`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(twoModuleDoc))

			_, err := h.orch.Save(context.Background(), "user-1", []byte(tt.body), nil)
			assert.Equal(t, pipeline.BadRequest, pipeline.KindOf(err))
			assert.Equal(t, 0, h.store.Writes())
		})
	}
}

func TestSave_PersistFailed(t *testing.T) {
	tests := []struct {
		name       string
		fail       error
		wantPolicy bool
	}{
		{"generic failure", errors.New("connection reset"), false},
		{"policy rejection", &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
			h.store.FailUpsertSkill = tt.fail

			_, err := h.orch.Save(context.Background(), "user-1", []byte(twoModuleDoc), nil)

			var perr *pipeline.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, pipeline.PersistFailed, perr.Kind)
			assert.Equal(t, http.StatusInternalServerError, perr.Kind.HTTPStatus())
			assert.Equal(t, tt.wantPolicy, strings.Contains(perr.Message, "access policy"))
			assert.NotContains(t, perr.Message, "row-level security")
			assert.Equal(t, 0, h.store.CountSkills())
		})
	}
}

func TestSave_AssignmentFailureIsAWarning(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(twoModuleDoc))
	h.store.FailInsertAssignments = errors.New("assignments unavailable")

	id, err := h.orch.Save(context.Background(), "user-1", []byte(twoModuleDoc), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = h.store.GetCurriculum(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{pipeline.EventAssignmentWarning, pipeline.EventCurriculumSaved}, h.events.Types())
}

func TestGenerateThenSave(t *testing.T) {
	h := newHarness(t, ai.NewMockProvider(fencedTwoModuleDoc))

	doc, err := h.orch.Generate(context.Background(), []byte(`{"skill":"Rust","experienceLevel":"beginner"}`), "user-1", nil)
	require.NoError(t, err)

	id, skillID := h.saveDoc(t, "user-1", mustJSON(t, doc))
	assert.NotEmpty(t, id)

	as, err := h.store.ListAssignments(context.Background(), skillID)
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, "CLI greeter", as[0].Title)
	assert.Equal(t, store.ModuleLevel, as[0].StepIndex)
}
