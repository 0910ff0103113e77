// Package orchestrator drives one conversation turn through classification,
// extraction, normalization, clarification, confirmation and apply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/llm"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/metrics"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/models"
)

var ErrClarifyLimitReached = errors.New("CLARIFY_LIMIT_REACHED")

// DefaultMaxClarifyRounds bounds answer merges per conversation.
const DefaultMaxClarifyRounds = 3

// Turn outcomes recorded on assistant_turns_total.
const (
	outcomeEmpty         = "empty"
	outcomeNotUnderstood = "not_understood"
	outcomeClarify       = "clarify"
	outcomeConfirm       = "confirm"
	outcomeError         = "error"
	outcomeAbandoned     = "abandoned"
	outcomeApplied       = "applied"
	outcomeRejected      = "rejected"
)

type Config struct {
	DefaultLocale    string
	MaxClarifyRounds int
	MaxQuestions     int
	PreviewItems     int
}

type Orchestrator struct {
	registry   *intent.Registry
	classifier llm.Classifier
	config     Config
	logger     logger.Logger
}

func New(registry *intent.Registry, classifier llm.Classifier, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.MaxClarifyRounds <= 0 {
		cfg.MaxClarifyRounds = DefaultMaxClarifyRounds
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = string(intent.LangFR)
	}
	return &Orchestrator{
		registry:   registry,
		classifier: classifier,
		config:     cfg,
		logger:     log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// prepare binds user to ictx and fills its defaults from config.
func (o *Orchestrator) prepare(user *models.User, ictx intent.Context) intent.Context {
	ictx.User = user
	if ictx.Locale == "" {
		ictx.Locale = o.config.DefaultLocale
		if user != nil && user.Locale != "" {
			ictx.Locale = user.Locale
		}
	}
	if ictx.MaxQuestions == 0 {
		ictx.MaxQuestions = o.config.MaxQuestions
	}
	if ictx.PreviewItems == 0 {
		ictx.PreviewItems = o.config.PreviewItems
	}
	return ictx
}

func message(ictx intent.Context, key string, args ...interface{}) intent.TurnResult {
	return intent.TurnResult{Type: intent.TurnMessage, Message: ictx.T(key, args...)}
}

// Propose handles a new utterance. It never returns an error and never
// panics: every failure becomes a neutral message.
func (o *Orchestrator) Propose(ctx context.Context, user *models.User, text string, ictx intent.Context) (result intent.TurnResult) {
	ictx = o.prepare(user, ictx)
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.TurnsTotal.WithLabelValues("", outcomeEmpty).Inc()
		return message(ictx, intent.MsgRephrase)
	}

	var (
		actionName string
		stage      = "classify"
	)
	defer func() {
		if r := recover(); r != nil {
			result = o.apology(ictx, actionName, stage, fmt.Errorf("panic: %v", r))
		}
	}()

	classified, err := o.classifier.Classify(ctx, text)
	if err != nil {
		return o.apology(ictx, "", stage, err)
	}
	if classified == llm.Unknown || !o.registry.Has(classified) {
		metrics.TurnsTotal.WithLabelValues("", outcomeNotUnderstood).Inc()
		o.logger.Info("utterance not understood", map[string]interface{}{"classified": classified})
		result = message(ictx, intent.MsgNotUnderstood)
		if ictx.Debug {
			result.Diagnostics = map[string]interface{}{"classified": classified}
		}
		return result
	}
	actionName = classified

	action, err := o.registry.Get(actionName)
	if err != nil {
		return o.apology(ictx, actionName, stage, err)
	}

	stage = "extract"
	draft, err := action.ExtractDraft(ctx, text, ictx)
	if err != nil {
		return o.apology(ictx, actionName, stage, err)
	}

	stage = "normalize"
	draft, err = action.NormalizeDraft(ctx, draft, ictx)
	if err != nil {
		return o.apology(ictx, actionName, stage, err)
	}

	stage = "evaluate"
	result, err = o.evaluate(action, draft, ictx)
	if err != nil {
		return o.apology(ictx, actionName, stage, err)
	}
	return result
}

// evaluate turns a normalized draft into a clarify or confirm result.
func (o *Orchestrator) evaluate(action intent.Action, draft intent.Draft, ictx intent.Context) (intent.TurnResult, error) {
	questions, err := action.ClarifyQuestions(draft, ictx)
	if err != nil {
		return intent.TurnResult{}, err
	}
	if len(questions) > 0 {
		metrics.TurnsTotal.WithLabelValues(action.Name(), outcomeClarify).Inc()
		return intent.TurnResult{
			Type:      intent.TurnClarify,
			Message:   ictx.T(intent.MsgClarifyIntro),
			Action:    action.Name(),
			Draft:     draft,
			Questions: questions,
		}, nil
	}

	text, err := action.ConfirmText(draft, ictx)
	if err != nil {
		return intent.TurnResult{}, err
	}
	metrics.TurnsTotal.WithLabelValues(action.Name(), outcomeConfirm).Inc()
	return intent.TurnResult{
		Type:    intent.TurnConfirm,
		Message: text,
		Action:  action.Name(),
		Draft:   draft,
	}, nil
}

// apology logs err and returns the generic failure message. The error is
// only exposed in debug mode.
func (o *Orchestrator) apology(ictx intent.Context, actionName, stage string, err error) intent.TurnResult {
	metrics.TurnsTotal.WithLabelValues(actionName, outcomeError).Inc()
	code := apperrors.CodeOf(err)
	o.logger.Error("turn failed", map[string]interface{}{
		"action": actionName,
		"stage":  stage,
		"code":   code,
		"error":  err,
	})

	result := message(ictx, intent.MsgApology)
	result.Action = actionName
	if ictx.Debug {
		result.Diagnostics = map[string]interface{}{
			"stage":      stage,
			"error_code": string(code),
			"error":      err.Error(),
		}
	}
	return result
}

// ApplyClarifyAnswers merges answers into draft and re-normalizes it. It
// fails with ErrClarifyLimitReached once the draft went through the
// configured number of rounds.
func (o *Orchestrator) ApplyClarifyAnswers(ctx context.Context, actionName string, draft intent.Draft, answers intent.Answers, ictx intent.Context) (intent.Draft, error) {
	action, err := o.registry.Get(actionName)
	if err != nil {
		return nil, err
	}
	ictx = o.prepare(ictx.User, ictx)

	if rounds := intent.ClarifyRounds(draft); rounds >= o.config.MaxClarifyRounds {
		return nil, fmt.Errorf("%w: %w", ErrClarifyLimitReached, apperrors.NewClarifyLimitReachedError(actionName, rounds))
	}

	merged, err := action.MergeAnswers(draft, answers)
	if err != nil {
		return nil, err
	}
	return action.NormalizeDraft(ctx, merged, ictx)
}

// Answer merges a clarify round and re-evaluates the draft. Like Propose it
// never fails: errors become messages.
func (o *Orchestrator) Answer(ctx context.Context, user *models.User, actionName string, draft intent.Draft, answers intent.Answers, ictx intent.Context) (result intent.TurnResult) {
	ictx = o.prepare(user, ictx)
	defer func() {
		if r := recover(); r != nil {
			result = o.apology(ictx, actionName, "answer", fmt.Errorf("panic: %v", r))
		}
	}()

	action, err := o.registry.Get(actionName)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("", outcomeNotUnderstood).Inc()
		return message(ictx, intent.MsgNotUnderstood)
	}

	next, err := o.ApplyClarifyAnswers(ctx, actionName, draft, answers, ictx)
	if errors.Is(err, ErrClarifyLimitReached) {
		metrics.TurnsTotal.WithLabelValues(actionName, outcomeAbandoned).Inc()
		o.logger.Info("clarify limit reached", map[string]interface{}{
			"action": actionName,
			"rounds": intent.ClarifyRounds(draft),
		})
		result = message(ictx, intent.MsgClarifyLimit)
		result.Action = actionName
		return result
	}
	if err != nil {
		return o.apology(ictx, actionName, "answer", err)
	}
	metrics.ClarifyRounds.WithLabelValues(actionName).Observe(float64(intent.ClarifyRounds(next)))

	result, err = o.evaluate(action, next, ictx)
	if err != nil {
		return o.apology(ictx, actionName, "evaluate", err)
	}
	return result
}

// Apply commits a confirmed draft. Unknown actions and infrastructure
// failures are returned as errors; domain refusals become a failed result.
// A draft that still needs answers after re-normalization yields a clarify
// result and nothing is written.
func (o *Orchestrator) Apply(ctx context.Context, user *models.User, actionName string, draft intent.Draft, ictx intent.Context) (intent.TurnResult, error) {
	action, err := o.registry.Get(actionName)
	if err != nil {
		return intent.TurnResult{}, err
	}
	ictx = o.prepare(user, ictx)
	log := o.logger.With(map[string]interface{}{"action": actionName})

	draft, err = action.NormalizeDraft(ctx, draft, ictx)
	if err != nil {
		return o.applyFailed(ictx, log, actionName, err)
	}

	questions, err := action.ClarifyQuestions(draft, ictx)
	if err != nil {
		return o.applyFailed(ictx, log, actionName, err)
	}
	if len(questions) > 0 {
		metrics.TurnsTotal.WithLabelValues(actionName, outcomeClarify).Inc()
		return intent.TurnResult{
			Type:      intent.TurnClarify,
			Message:   ictx.T(intent.MsgClarifyIntro),
			Action:    actionName,
			Draft:     draft,
			Questions: questions,
		}, nil
	}

	res, err := action.Apply(ctx, withLocale(user, ictx.Locale), draft)
	if err != nil {
		return o.applyFailed(ictx, log, actionName, err)
	}

	metrics.ApplyTotal.WithLabelValues(actionName, "success").Inc()
	metrics.TurnsTotal.WithLabelValues(actionName, outcomeApplied).Inc()
	log.Info("draft applied", map[string]interface{}{
		"applied": res.Applied,
		"created": res.Created,
		"skipped": res.Skipped,
	})

	msg := ictx.T(intent.MsgApplied)
	if len(res.Warnings) > 0 {
		msg += "\n" + strings.Join(res.Warnings, "\n")
	}
	return intent.TurnResult{
		Type:    intent.TurnApplied,
		Message: msg,
		Action:  actionName,
		Result:  &res,
	}, nil
}

func (o *Orchestrator) applyFailed(ictx intent.Context, log logger.Logger, actionName string, err error) (intent.TurnResult, error) {
	if !apperrors.IsDomainError(err) {
		metrics.ApplyTotal.WithLabelValues(actionName, "error").Inc()
		log.Error("apply failed", map[string]interface{}{
			"code":  apperrors.CodeOf(err),
			"error": err,
		})
		return intent.TurnResult{}, err
	}

	metrics.ApplyTotal.WithLabelValues(actionName, outcomeRejected).Inc()
	metrics.TurnsTotal.WithLabelValues(actionName, outcomeRejected).Inc()
	log.Warn("apply rejected", map[string]interface{}{
		"code":  apperrors.CodeOf(err),
		"error": err,
	})
	result := intent.TurnResult{
		Type:    intent.TurnFailed,
		Message: ictx.FailureMessage(err),
		Action:  actionName,
	}
	if ictx.Debug {
		result.Diagnostics = map[string]interface{}{
			"error_code": string(apperrors.CodeOf(err)),
			"error":      err.Error(),
		}
	}
	return result, nil
}

// withLocale returns a copy of user carrying locale when it has none.
func withLocale(user *models.User, locale string) *models.User {
	if user == nil || user.Locale != "" {
		return user
	}
	u := *user
	u.Locale = locale
	return &u
}
