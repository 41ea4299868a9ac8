// Package pipeline runs curriculum generation end to end: request
// validation, prompt construction, the model call, sanitization, schema
// validation and persistence, classifying every failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/ai"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/store"
)

const (
	defaultModelTimeout = 120 * time.Second
	maxLoggedOutput     = 2048
)

// Config holds dependencies for the orchestrator.
type Config struct {
	Providers *ai.Registry
	Profile   curriculum.Profile
	Store     store.Store
	Quota     ai.Quota      // optional
	Events    EventLogger   // optional
	Timeout   time.Duration // model call timeout (default 120s)
}

// Orchestrator composes the pipeline stages. It holds no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	provider     ai.Provider
	providerName string
	profile      curriculum.Profile
	store        store.Store
	gateway      *store.Gateway
	quota        ai.Quota
	events       EventLogger
	timeout      time.Duration
}

// New creates an orchestrator. Missing required dependencies are
// configuration errors.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Providers == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	provider, name, err := cfg.Providers.Primary()
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("generation profile: %w", err)
	}

	o := &Orchestrator{
		provider:     provider,
		providerName: name,
		profile:      cfg.Profile,
		store:        cfg.Store,
		quota:        cfg.Quota,
		events:       cfg.Events,
		timeout:      cfg.Timeout,
	}
	if o.events == nil {
		o.events = NopEventLogger{}
	}
	if o.timeout <= 0 {
		o.timeout = defaultModelTimeout
	}
	o.gateway = store.NewGateway(cfg.Store, store.WithAssignmentWarning(o.assignmentWarning))
	return o, nil
}

// Generate validates a GenerationRequest body, asks the model for a
// curriculum and returns the validated document. Nothing is persisted.
// caller keys the token quota and may be empty.
func (o *Orchestrator) Generate(ctx context.Context, body []byte, caller string, obs Observer) (curriculum.GenerationResponse, error) {
	r := newRun(obs)

	doc, err := o.generate(ctx, r, body, caller)
	GenerationsTotal.WithLabelValues(ai.TaskCurriculum.String(), outcome(err)).Inc()
	if err != nil {
		o.logEvent(Event{UserID: caller, EventType: EventGenerationFailed, Data: map[string]any{
			"task": ai.TaskCurriculum.String(),
			"kind": KindOf(err).Code(),
		}})
		return curriculum.GenerationResponse{}, err
	}

	o.logEvent(Event{UserID: caller, EventType: EventCurriculumGenerated, Data: map[string]any{
		"skill":            doc.Skill,
		"experience_level": doc.ExperienceLevel,
		"modules":          len(doc.Curriculum.Modules),
		"steps":            doc.Curriculum.TotalSteps(),
	}})
	r.to(StateResponded)
	return doc, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, body []byte, caller string) (curriculum.GenerationResponse, error) {
	var req curriculum.GenerationRequest
	if err := curriculum.ValidateDocument(curriculum.SchemaGenerationRequest, body, &req); err != nil {
		return curriculum.GenerationResponse{}, r.fail(badRequest(err))
	}
	r.to(StateValidated)

	if perr := o.checkQuota(ctx, caller); perr != nil {
		return curriculum.GenerationResponse{}, r.fail(perr)
	}

	prompt := curriculum.BuildPrompt(req.Skill, req.ExperienceLevel, req.AssessmentContext)
	r.to(StatePromptBuilt)

	text, perr := o.complete(ctx, ai.TaskCurriculum, prompt, caller)
	if perr != nil {
		slog.Warn("curriculum generation failed",
			"skill", req.Skill,
			"kind", perr.Kind.Code(),
			"reason", perr.Reason,
			"error", perr.Err,
		)
		return curriculum.GenerationResponse{}, r.fail(perr)
	}
	r.to(StateModelInvoked)

	cleaned := curriculum.Sanitize(text)
	r.to(StateSanitized)

	doc, err := curriculum.Validate(cleaned)
	if err != nil {
		perr := outputError(err)
		slog.Warn("model output rejected",
			"skill", req.Skill,
			"kind", perr.Kind.Code(),
			"fields", perr.Fields,
			"output", truncate(cleaned, maxLoggedOutput),
			"error", err,
		)
		return curriculum.GenerationResponse{}, r.fail(perr)
	}
	r.to(StateSchemaValidated)

	slog.Info("curriculum generated",
		"skill", req.Skill,
		"experience_level", string(req.ExperienceLevel),
		"modules", len(doc.Curriculum.Modules),
		"provider", o.providerName,
	)
	return doc, nil
}

// Save persists a GenerationResponse body for an authenticated user and
// returns the new curriculum id. An empty userID is rejected before the
// body is read.
func (o *Orchestrator) Save(ctx context.Context, userID string, body []byte, obs Observer) (string, error) {
	r := newRun(obs)

	id, err := o.save(ctx, r, userID, body)
	SavesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		if KindOf(err) != AuthenticationRequired {
			o.logEvent(Event{UserID: userID, EventType: EventSaveFailed, Data: map[string]any{"kind": KindOf(err).Code()}})
		}
		return "", err
	}

	o.logEvent(Event{UserID: userID, EventType: EventCurriculumSaved, Data: map[string]any{"curriculum_id": id}})
	r.to(StateResponded)
	return id, nil
}

func (o *Orchestrator) save(ctx context.Context, r *run, userID string, body []byte) (string, error) {
	if userID == "" {
		return "", r.fail(newError(AuthenticationRequired, "Sign in to save a curriculum.", nil))
	}

	var doc curriculum.GenerationResponse
	if err := curriculum.ValidateDocument(curriculum.SchemaSaveRequest, body, &doc); err != nil {
		return "", r.fail(badRequest(err))
	}
	r.to(StateValidated)

	id, err := o.gateway.Save(ctx, userID, doc)
	if err != nil {
		var pe *store.PersistError
		msg := "The curriculum could not be saved."
		if errors.As(err, &pe) && pe.PolicyRejected {
			msg = "Saving the curriculum was rejected by the access policy."
		}
		slog.Error("curriculum save failed",
			"user_id", userID,
			"skill", doc.Skill,
			"error", err,
		)
		return "", r.fail(newError(PersistFailed, msg, err))
	}
	r.to(StatePersisted)
	return id, nil
}

func (o *Orchestrator) assignmentWarning(skillID string, err error) {
	AssignmentWarningsTotal.Inc()
	o.logEvent(Event{EventType: EventAssignmentWarning, Data: map[string]any{
		"skill_id": skillID,
		"error":    err.Error(),
	}})
}

// checkQuota rejects callers whose daily token budget is spent. Quota
// backend errors are logged and do not block generation.
func (o *Orchestrator) checkQuota(ctx context.Context, caller string) *Error {
	if o.quota == nil || caller == "" {
		return nil
	}
	ok, err := o.quota.Check(ctx, caller)
	if err != nil {
		slog.Warn("quota check failed", "caller", caller, "error", err)
		return nil
	}
	if !ok {
		return newError(QuotaExceeded, "Daily generation budget exhausted. Try again tomorrow.", nil)
	}
	return nil
}

// complete calls the model once. The call is detached from ctx
// cancellation so a client disconnect does not abort it.
func (o *Orchestrator) complete(ctx context.Context, task ai.TaskType, prompt, caller string) (string, *Error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.provider.Complete(callCtx, o.profile.Request(task, prompt))
	ModelRequestDuration.WithLabelValues(task.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", newError(UpstreamUnavailable, "The curriculum service is temporarily unavailable.", err)
	}
	ModelTokensTotal.WithLabelValues(task.String()).Add(float64(resp.TotalTokens()))

	if o.quota != nil && caller != "" {
		// Tokens are spent even if the client went away.
		recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
		err := o.quota.Record(recordCtx, caller, resp.TotalTokens())
		cancelRecord()
		if err != nil {
			slog.Warn("quota record failed", "caller", caller, "error", err)
		}
	}

	if resp.Blocked() {
		e := newError(ContentBlocked, "The request was blocked by the content safety policy.", nil)
		e.Reason = resp.BlockReason
		return "", e
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", newError(UpstreamUnavailable, "The curriculum service returned no usable text.", nil)
	}

	slog.Debug("model call complete",
		"task", task.String(),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"grounded", resp.Grounded,
	)
	return resp.Content, nil
}

func (o *Orchestrator) logEvent(e Event) {
	if err := o.events.LogEvent(e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "error", err)
	}
}

// HealthCheck reports whether the configured provider is reachable.
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	return o.provider.HealthCheck(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
