package intent

import (
	apperrors "pantry-assistant/internal/common/errors"
)

const (
	metaMessageKey  = "message_key"
	metaMessageArgs = "message_args"
)

// Refusal is a BUSINESS_RULE_VIOLATION whose user-facing text is the catalog
// message key, rendered later in the turn's language.
func Refusal(key string, args ...interface{}) *apperrors.StandardError {
	return apperrors.NewBusinessRuleError(Message(LangEN, key, args...), key).
		WithMetadata(metaMessageKey, key).
		WithMetadata(metaMessageArgs, args)
}

// NotFound is an ENTITY_NOT_FOUND error rendered from a catalog message.
func NotFound(kind, key string, args ...interface{}) *apperrors.StandardError {
	return apperrors.NewEntityNotFoundError(kind, Message(LangEN, key, args...)).
		WithMetadata(metaMessageKey, key).
		WithMetadata(metaMessageArgs, args)
}

// FailureMessage renders a domain error for the user.
func (c Context) FailureMessage(err error) string {
	se, ok := apperrors.As(err)
	if !ok {
		return c.T(MsgApology)
	}
	if key, ok := se.Metadata[metaMessageKey].(string); ok {
		args, _ := se.Metadata[metaMessageArgs].([]interface{})
		if key == MsgSignInRequired {
			return c.T(key)
		}
		return c.T(MsgApplyFailed, c.T(key, args...))
	}
	detail := se.Details
	if detail == "" {
		detail = se.Message
	}
	return c.T(MsgApplyFailed, detail)
}
