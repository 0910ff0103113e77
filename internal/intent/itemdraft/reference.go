package itemdraft

import (
	"context"
	"errors"

	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store"
)

// Ref is a mention of one existing entity, such as the recipe targeted by
// update_recipe or plan_meal.
type Ref struct {
	Mention    string               `json:"mention"`
	ID         string               `json:"id,omitempty"`
	Name       string               `json:"name,omitempty"`
	Resolution resolver.Status      `json:"resolution,omitempty"`
	Candidates []resolver.Candidate `json:"candidates,omitempty"`
}

// Empty reports whether nothing was mentioned or chosen.
func (r Ref) Empty() bool { return r.Mention == "" && r.ID == "" }

// Resolved reports whether r points at a known entity.
func (r Ref) Resolved() bool { return r.ID != "" && r.Resolution == resolver.StatusMatched }

// Label is the name shown to the user.
func (r Ref) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Mention
}

// Resolve verifies a chosen ID, or resolves the mention without ever
// creating an entity.
func (r *Ref) Resolve(ctx context.Context, sess *resolver.Session, kind models.EntityKind) error {
	if r.ID != "" {
		e, err := sess.Get(ctx, kind, r.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			r.ID = ""
		case err != nil:
			return err
		default:
			r.Name = e.Name
			r.Resolution = resolver.StatusMatched
			r.Candidates = nil
			return nil
		}
	}

	r.Name = ""
	r.Resolution = ""
	r.Candidates = nil
	if r.Mention == "" {
		return nil
	}
	res, err := sess.ResolveExisting(ctx, kind, r.Mention)
	if err != nil {
		return err
	}
	r.Resolution = res.Status
	switch res.Status {
	case resolver.StatusMatched:
		r.ID = res.Entity.ID
		r.Name = res.Entity.Name
	case resolver.StatusAmbiguous:
		r.Candidates = res.Candidates
	}
	return nil
}

// RefMessages are the catalog keys used to ask about a Ref.
type RefMessages struct {
	Missing  string
	NotFound string
	Choose   string
}

// Questions asks for the mention at mentionPath or a choice at idPath. An
// empty ref is only asked about when required.
func (r Ref) Questions(mentionPath, idPath string, required bool, msgs RefMessages, ictx intent.Context) []intent.ClarifyQuestion {
	switch {
	case r.Resolved():
		return nil
	case r.Empty():
		if !required {
			return nil
		}
		return []intent.ClarifyQuestion{{Path: mentionPath, Label: ictx.T(msgs.Missing), Kind: intent.KindText}}
	case r.Resolution == resolver.StatusAmbiguous:
		opts := make([]intent.Option, len(r.Candidates))
		for i, c := range r.Candidates {
			opts[i] = intent.Option{Value: c.ID, Label: c.Name}
		}
		return []intent.ClarifyQuestion{{
			Path:    idPath,
			Label:   ictx.T(msgs.Choose, r.Mention),
			Kind:    intent.KindSelect,
			Options: opts,
		}}
	default:
		return []intent.ClarifyQuestion{{Path: mentionPath, Label: ictx.T(msgs.NotFound, r.Mention), Kind: intent.KindText}}
	}
}

// Merge applies the answers at mentionPath and idPath.
func (r *Ref) Merge(mentionPath, idPath string, answers intent.Answers) {
	if s, ok := answers.String(mentionPath); ok && s != "" {
		*r = Ref{Mention: s}
	}
	if s, ok := answers.String(idPath); ok && s != "" {
		r.ID = s
		r.Candidates = nil
	}
}

// RecipeMessages are the questions asked about a recipe reference.
var RecipeMessages = RefMessages{
	Missing:  intent.MsgRecipeName,
	NotFound: intent.MsgRecipeNotFound,
	Choose:   intent.MsgRecipeChoose,
}
