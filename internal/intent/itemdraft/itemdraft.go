// Package itemdraft implements the list-of-products draft shared by the stock
// and shopping list actions.
package itemdraft

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/validation"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/lineitem"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store"
)

// Line is one product line of an item draft.
type Line struct {
	lineitem.Item
	ProductID         string               `json:"product_id,omitempty"`
	Resolution        resolver.Status      `json:"resolution,omitempty"`
	Candidates        []resolver.Candidate `json:"candidates,omitempty"`
	Warnings          []string             `json:"warnings,omitempty"`
	NeedsConfirmation bool                 `json:"needs_confirmation,omitempty"`
}

// Label is the product name shown to the user.
func (l Line) Label() string {
	if l.Name != "" {
		return l.Name
	}
	return l.NameRaw
}

// UnitOrDefault returns the line's unit, piece when unset.
func (l Line) UnitOrDefault() models.Unit {
	if l.Unit == nil {
		return models.UnitPiece
	}
	return *l.Unit
}

// HasWarning reports whether tag is among the line's warnings.
func (l Line) HasWarning(tag string) bool {
	for _, w := range l.Warnings {
		if w == tag {
			return true
		}
	}
	return false
}

type Draft struct {
	Items []Line `json:"items"`
}

// Mode selects how product mentions are resolved.
type Mode int

const (
	// ModeCreate inserts products that do not exist yet.
	ModeCreate Mode = iota
	// ModeExisting only targets products already known.
	ModeExisting
)

// ApplyFunc applies one resolved line inside the apply transaction. user is
// never anonymous.
type ApplyFunc func(ctx context.Context, repos store.Repositories, user *models.User, line Line, res *intent.Result) error

// Definition describes one item-list action.
type Definition struct {
	Name        string
	Description string
	Mode        Mode
	// RequireQuantity makes a missing quantity a clarify question.
	RequireQuantity bool
	// Task is the action-specific sentence of the extraction prompt.
	Task  string
	Apply ApplyFunc
}

// Action is an intent.Typed over Draft.
type Action struct {
	def    Definition
	deps   intent.Deps
	logger logger.Logger
}

// New builds the intent.Action for def.
func New(def Definition, deps intent.Deps) intent.Action {
	a := &Action{
		def:    def,
		deps:   deps,
		logger: deps.Logger.With(map[string]interface{}{"action": def.Name}),
	}
	return intent.Adapt[Draft](a, deps.Completer)
}

func (a *Action) Name() string        { return a.def.Name }
func (a *Action) Description() string { return a.def.Description }

// ItemSchema is the extraction schema of one line.
func ItemSchema() validation.Schema {
	return validation.Object(map[string]interface{}{
		"name_raw":     validation.String(),
		"name":         validation.Nullable("string"),
		"quantity":     validation.Nullable("number"),
		"quantity_raw": validation.Nullable("string"),
		"unit":         validation.Enum(true, models.UnitNames()...),
		"unit_raw":     validation.Nullable("string"),
		"notes":        validation.Nullable("string"),
		"confidence":   validation.Range(0, 1),
	}, "name_raw", "confidence")
}

func (a *Action) Schema() validation.Schema {
	return validation.Object(map[string]interface{}{
		"items": validation.Array(ItemSchema()),
	}, "items")
}

// ItemPrompt describes how to extract product lines.
const ItemPrompt = `For each product mentioned, output one item with:
- name_raw: the product exactly as written;
- name: the product in its singular canonical form without article (e.g. "pomme" for "des pommes"), else null;
- quantity: a number when explicit, else null; quantity_raw: the quantity text as written;
- unit: one of the allowed units when obvious, else null; unit_raw: the unit text as written;
- confidence: how sure you are of this item, between 0 and 1.
Never invent products or quantities.`

func (a *Action) Prompt(ictx intent.Context) string {
	return fmt.Sprintf("You extract a shopping/pantry command for a household assistant (locale %s).\n%s\n%s",
		ictx.Lang(), a.def.Task, ItemPrompt)
}

// Normalize repairs every line and resolves its product.
func (a *Action) Normalize(ctx context.Context, d *Draft, ictx intent.Context) error {
	sess := a.deps.Resolver.NewSession(ictx.User)
	create := a.def.Mode == ModeCreate && ictx.User.OwnerID() != nil
	for i := range d.Items {
		if err := NormalizeLine(ctx, sess, &d.Items[i], create, a.def.RequireQuantity); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeLine repairs l and resolves its product through sess. With create
// set, unknown products are inserted. Without requireQuantity a missing
// quantity is not reported.
func NormalizeLine(ctx context.Context, sess *resolver.Session, l *Line, create, requireQuantity bool) error {
	r := lineitem.Normalize(l.Item)
	l.Item = r.Item
	l.Warnings = StickyWarnings(r.Warnings, l.Warnings)
	if !requireQuantity {
		l.Warnings = dropQuantityTags(l.Warnings)
	}

	if l.ProductID != "" {
		e, err := sess.Get(ctx, models.KindProduct, l.ProductID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			l.ProductID = ""
		case err != nil:
			return err
		default:
			l.Name = e.Name
			l.Resolution = resolver.StatusMatched
			l.Candidates = nil
		}
	}

	if l.ProductID == "" {
		l.Resolution = ""
		l.Candidates = nil
		if l.Name != "" {
			var (
				res resolver.Resolution
				err error
			)
			if create {
				res, err = sess.ResolveOrCreate(ctx, models.KindProduct, l.Name)
			} else {
				res, err = sess.ResolveExisting(ctx, models.KindProduct, l.Name)
			}
			if err != nil {
				return err
			}
			l.Resolution = res.Status
			switch res.Status {
			case resolver.StatusMatched:
				l.ProductID = res.Entity.ID
				l.Name = res.Entity.Name
			case resolver.StatusAmbiguous:
				l.Candidates = res.Candidates
			}
		}
	}

	l.NeedsConfirmation = len(l.Warnings) > 0 || l.Resolution != resolver.StatusMatched
	return nil
}

func dropQuantityTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t == lineitem.WarnQuantityMissing || t == lineitem.WarnUnitDefaulted {
			continue
		}
		out = append(out, t)
	}
	return out
}

// StickyWarnings returns fresh plus every advisory tag of previous, so tags
// only detectable on the first pass survive re-normalization. Blocking tags
// are always recomputed.
func StickyWarnings(fresh, previous []string) []string {
	out := append([]string(nil), fresh...)
	for _, w := range previous {
		if lineitem.Blocking(w) || contains(out, w) {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (a *Action) Questions(d *Draft, ictx intent.Context) []intent.ClarifyQuestion {
	if len(d.Items) == 0 {
		return []intent.ClarifyQuestion{{
			Path:  "items.0.name",
			Label: ictx.T(intent.MsgNoItems),
			Kind:  intent.KindText,
		}}
	}
	return ListQuestions("items", d.Items, ictx)
}

// ListQuestions gathers the questions of every line under prefix.
func ListQuestions(prefix string, lines []Line, ictx intent.Context) []intent.ClarifyQuestion {
	var qs []intent.ClarifyQuestion
	for i, l := range lines {
		qs = append(qs, LineQuestions(fmt.Sprintf("%s.%d", prefix, i), i, l, ictx)...)
	}
	return qs
}

// LineQuestions lists the questions needed to complete l. prefix is the
// answer path of the line.
func LineQuestions(prefix string, index int, l Line, ictx intent.Context) []intent.ClarifyQuestion {
	lang := ictx.Lang()
	var qs []intent.ClarifyQuestion
	name := l.Label()

	switch {
	case name == "":
		qs = append(qs, intent.ClarifyQuestion{
			Path:  prefix + ".name",
			Label: ictx.T(intent.MsgItemName, index+1),
			Kind:  intent.KindText,
		})
	case l.Resolution == resolver.StatusAmbiguous:
		opts := make([]intent.Option, len(l.Candidates))
		for j, c := range l.Candidates {
			opts[j] = intent.Option{Value: c.ID, Label: c.Name}
		}
		qs = append(qs, intent.ClarifyQuestion{
			Path:    prefix + ".product_id",
			Label:   ictx.T(intent.MsgItemChoose, name),
			Kind:    intent.KindSelect,
			Options: opts,
		})
	case l.Resolution == resolver.StatusNotFound:
		qs = append(qs, intent.ClarifyQuestion{
			Path:  prefix + ".name",
			Label: ictx.T(intent.MsgItemNotFound, name),
			Kind:  intent.KindText,
		})
	}

	if l.HasWarning(lineitem.WarnQuantityMissing) {
		qs = append(qs, intent.ClarifyQuestion{
			Path:        prefix + ".quantity",
			Label:       ictx.T(intent.MsgItemQuantity, name),
			Kind:        intent.KindNumber,
			Placeholder: "1",
		})
	}
	if l.HasWarning(lineitem.WarnUnitUnmapped) {
		opts := make([]intent.Option, len(models.Units))
		for j, u := range models.Units {
			opts[j] = intent.Option{Value: string(u), Label: intent.UnitLabel(lang, u, 1)}
		}
		qs = append(qs, intent.ClarifyQuestion{
			Path:    prefix + ".unit",
			Label:   ictx.T(intent.MsgItemUnit, name, l.UnitRaw),
			Kind:    intent.KindSelect,
			Options: opts,
		})
	}
	return qs
}

func (a *Action) Merge(d *Draft, answers intent.Answers) {
	d.Items = MergeLines(d.Items, "items", answers)
}

// MergeLines merges every "<prefix>.<i>.<field>" answer into lines. A name
// answered for index 0 of an empty list starts the list; answers for any
// other absent index are ignored.
func MergeLines(lines []Line, prefix string, answers intent.Answers) []Line {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		if strings.HasPrefix(k, prefix+".") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts := strings.Split(strings.TrimPrefix(key, prefix+"."), ".")
		if len(parts) != 2 {
			continue
		}
		i, err := strconv.Atoi(parts[0])
		if err != nil || i < 0 || i > len(lines) {
			continue
		}
		if i == len(lines) {
			if i != 0 || parts[1] != "name" {
				continue
			}
			lines = append(lines, Line{Item: lineitem.Item{Confidence: 1}})
		}
		MergeLine(&lines[i], parts[1], key, answers)
	}
	return lines
}

// MergeLine writes the answer at key into field of l. Unknown fields are
// ignored.
func MergeLine(l *Line, field, key string, answers intent.Answers) {
	switch field {
	case "quantity":
		q, ok := answers.Float(key)
		if !ok {
			return
		}
		l.Quantity = &q
		l.QuantityRaw = ""
	case "unit":
		s, ok := answers.String(key)
		if !ok || s == "" {
			return
		}
		u := models.Unit(s)
		l.Unit = &u
		l.UnitRaw = ""
	case "name":
		s, ok := answers.String(key)
		if !ok || s == "" {
			return
		}
		l.Name = s
		l.NameRaw = s
		l.ProductID = ""
		l.Resolution = ""
		l.Candidates = nil
	case "product_id":
		s, ok := answers.String(key)
		if !ok || s == "" {
			return
		}
		l.ProductID = s
		l.Candidates = nil
	default:
		return
	}
	l.Warnings = nil
}

func (a *Action) Confirm(d *Draft, ictx intent.Context) string {
	var b strings.Builder
	b.WriteString(ictx.T("headline_" + a.def.Name))
	WriteLines(&b, d.Items, ictx)
	return b.String()
}

// WriteLines renders the preview of lines, one per row.
func WriteLines(b *strings.Builder, lines []Line, ictx intent.Context) {
	lang := ictx.Lang()
	preview := ictx.Preview()
	for i, l := range lines {
		if i == preview {
			b.WriteString("\n" + ictx.T(intent.MsgMore, len(lines)-preview))
			break
		}
		b.WriteString("\n- " + l.Label())
		if qty := intent.FormatQuantity(lang, l.Quantity, l.Unit); qty != "" {
			b.WriteString(" : " + qty)
		}
		var advisory []string
		for _, w := range l.Warnings {
			if !lineitem.Blocking(w) {
				advisory = append(advisory, intent.WarningLabel(lang, w))
			}
		}
		if len(advisory) > 0 {
			b.WriteString(" (" + ictx.T(intent.MsgToCheck) + " : " + strings.Join(advisory, ", ") + ")")
		}
	}
}

func (a *Action) Apply(ctx context.Context, user *models.User, d *Draft) (intent.Result, error) {
	if user.OwnerID() == nil {
		return intent.Result{}, intent.Refusal(intent.MsgSignInRequired)
	}

	var res intent.Result
	err := a.deps.Store.Atomic(ctx, func(repos store.Repositories) error {
		res = intent.Result{}
		for _, l := range d.Items {
			if l.ProductID == "" {
				res.Skipped++
				continue
			}
			if err := a.def.Apply(ctx, repos, user, l, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return intent.Result{}, err
	}

	a.logger.Info("items applied", map[string]interface{}{
		"userId":  user.ID,
		"applied": res.Applied,
		"created": res.Created,
		"skipped": res.Skipped,
	})
	return res, nil
}
