package intent

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"pantry-assistant/internal/models"
)

// Lang is a supported message language.
type Lang string

const (
	LangFR Lang = "fr"
	LangEN Lang = "en"
)

var (
	supportedTags  = []language.Tag{language.French, language.English}
	supportedLangs = []Lang{LangFR, LangEN}
	langMatcher    = language.NewMatcher(supportedTags)
)

// MatchLang picks the supported language closest to locale ("fr-CA",
// "en_GB", "de" ...). French is the fallback.
func MatchLang(locale string) Lang {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return LangFR
	}
	_, idx := language.MatchStrings(langMatcher, locale)
	return supportedLangs[idx]
}

// Lang returns the message language for the turn.
func (c Context) Lang() Lang { return MatchLang(c.Locale) }

// T formats the catalog message key in the turn's language.
func (c Context) T(key string, args ...interface{}) string {
	return Message(c.Lang(), key, args...)
}

// Message formats key for lang, falling back to French then to the key.
func Message(lang Lang, key string, args ...interface{}) string {
	format, ok := catalog[lang][key]
	if !ok {
		if format, ok = catalog[LangFR][key]; !ok {
			format = key
		}
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// FormatNumber renders v without trailing zeros, with a decimal comma in
// French.
func FormatNumber(lang Lang, v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if lang == LangFR {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

// FormatQuantity renders "2 kg", "1,5 l" or "3 pièces". A nil quantity
// renders as the unit alone, or nothing for pieces.
func FormatQuantity(lang Lang, qty *float64, unit *models.Unit) string {
	u := models.UnitPiece
	if unit != nil {
		u = *unit
	}
	if qty == nil {
		if u == models.UnitPiece {
			return ""
		}
		return UnitLabel(lang, u, 2)
	}
	return FormatNumber(lang, *qty) + " " + UnitLabel(lang, u, *qty)
}

// UnitLabel is the display label for u.
func UnitLabel(lang Lang, u models.Unit, qty float64) string {
	plural := qty > 1
	switch u {
	case models.UnitPiece:
		if lang == LangFR {
			return pluralize("pièce", plural)
		}
		return pluralize("piece", plural)
	case models.UnitPack:
		if lang == LangFR {
			return pluralize("paquet", plural)
		}
		return pluralize("pack", plural)
	case models.UnitPinch:
		if lang == LangFR {
			return pluralize("pincée", plural)
		}
		if plural {
			return "pinches"
		}
		return "pinch"
	case models.UnitTbsp:
		if lang == LangFR {
			return "c. à soupe"
		}
	case models.UnitTsp:
		if lang == LangFR {
			return "c. à café"
		}
	}
	return string(u)
}

func pluralize(word string, plural bool) string {
	if plural {
		return word + "s"
	}
	return word
}

const (
	MsgRephrase          = "rephrase"
	MsgNotUnderstood     = "not_understood"
	MsgApology           = "apology"
	MsgConfirmPrompt     = "confirm_prompt"
	MsgClarifyIntro      = "clarify_intro"
	MsgClarifyLimit      = "clarify_limit"
	MsgApplied           = "applied"
	MsgApplyFailed       = "apply_failed"
	MsgMore              = "more"
	MsgToCheck           = "to_check"
	MsgSignInRequired    = "sign_in_required"
	MsgItemName          = "item_name"
	MsgItemNotFound      = "item_not_found"
	MsgItemChoose        = "item_choose"
	MsgItemQuantity      = "item_quantity"
	MsgItemUnit          = "item_unit"
	MsgNoItems           = "no_items"
	MsgRecipeName        = "recipe_name"
	MsgRecipeNotFound    = "recipe_not_found"
	MsgRecipeChoose      = "recipe_choose"
	MsgRecipeExists      = "recipe_exists"
	MsgRecipeServings    = "recipe_servings"
	MsgRecipeNotOwned    = "recipe_not_owned"
	MsgRecipeChanges     = "recipe_changes"
	MsgDate              = "date"
	MsgDateInvalid       = "date_invalid"
	MsgMeal              = "meal"
	MsgWarnParsed        = "warn_quantity_parsed_from_raw"
	MsgWarnInvalid       = "warn_invalid_quantity"
	MsgWarnMissing       = "warn_quantity_missing"
	MsgWarnUnmapped      = "warn_unit_unmapped"
	MsgWarnDefaulted     = "warn_unit_defaulted"
	MsgWarnSuspicious    = "warn_suspicious_quantity_for_unit"
	MsgWarnLowConfidence = "warn_low_confidence"
)

// WarningLabel is the display text of a line-item warning tag.
func WarningLabel(lang Lang, tag string) string {
	return Message(lang, "warn_"+tag)
}

// MealLabel is the display name of a meal slot.
func MealLabel(lang Lang, m models.MealSlot) string {
	return Message(lang, "meal_"+string(m))
}

var catalog = map[Lang]map[string]string{
	LangFR: {
		MsgRephrase:       "Je n'ai rien reçu. Pouvez-vous reformuler ?",
		MsgNotUnderstood:  "Je n'ai pas compris la demande. Pouvez-vous reformuler ?",
		MsgApology:        "Désolé, je n'ai pas pu traiter cette demande. Réessayez dans un instant.",
		MsgConfirmPrompt:  "On valide ? (oui/non)",
		MsgClarifyIntro:   "Il me manque quelques précisions :",
		MsgClarifyLimit:   "Je n'arrive pas à compléter cette demande. Reprenons depuis le début : pouvez-vous la reformuler ?",
		MsgApplied:        "C'est fait.",
		MsgApplyFailed:    "Je n'ai pas pu appliquer la modification : %s",
		MsgMore:           "+%d autre(s)",
		MsgToCheck:        "à vérifier",
		MsgSignInRequired: "Connectez-vous pour modifier vos données.",
		MsgItemName:       "Quel produit pour la ligne %d ?",
		MsgItemNotFound:   "Je ne trouve pas « %s ». De quel produit s'agit-il ?",
		MsgItemChoose:     "Plusieurs produits correspondent à « %s ». Lequel ?",
		MsgItemQuantity:   "Quelle quantité de %s ?",
		MsgItemUnit:       "Quelle unité pour %s (« %s » inconnue) ?",
		MsgNoItems:        "Quels produits ?",
		MsgRecipeName:     "Quelle recette ?",
		MsgRecipeNotFound: "Je ne trouve pas la recette « %s ». Laquelle ?",
		MsgRecipeChoose:   "Plusieurs recettes correspondent à « %s ». Laquelle ?",
		MsgRecipeExists:   "La recette « %s » existe déjà.",
		MsgRecipeServings: "Pour combien de personnes ?",
		MsgRecipeNotOwned: "La recette « %s » est partagée : elle ne peut pas être modifiée.",
		MsgRecipeChanges:  "Que faut-il changer dans « %s » ? Indiquez un ingrédient à ajouter.",
		MsgDate:           "Pour quel jour ?",
		MsgDateInvalid:    "Je ne comprends pas la date « %s ». Pour quel jour ?",
		MsgMeal:           "Pour quel repas ?",

		MsgWarnParsed:        "quantité déduite",
		MsgWarnInvalid:       "quantité invalide",
		MsgWarnMissing:       "quantité manquante",
		MsgWarnUnmapped:      "unité inconnue",
		MsgWarnDefaulted:     "unité par défaut",
		MsgWarnSuspicious:    "quantité inhabituelle",
		MsgWarnLowConfidence: "compréhension incertaine",

		"meal_breakfast": "petit-déjeuner",
		"meal_lunch":     "déjeuner",
		"meal_dinner":    "dîner",
		"meal_snack":     "goûter",

		"headline_add_stock":             "Ajouter au stock :",
		"headline_consume_stock":         "Retirer du stock :",
		"headline_set_stock":             "Mettre le stock à jour :",
		"headline_add_shopping_items":    "Ajouter à la liste de courses :",
		"headline_remove_shopping_items": "Retirer de la liste de courses :",
		"headline_create_recipe":         "Créer la recette « %s » (%d pers.) :",
		"headline_update_recipe":         "Modifier la recette « %s » :",
		"headline_plan_meal":             "Planifier « %s » le %s au %s (%d pers.).",
		"headline_unplan_meal":           "Retirer %s du %s le %s.",
		"unplan_all":                     "tous les plats",
		"recipe_rename":                  "renommer en « %s »",
		"recipe_servings_to":             "%d personnes",
		"recipe_add_ingredient":          "ajouter %s",
		"recipe_remove_ingredient":       "retirer %s",
		"recipe_steps":                   "%d étape(s)",
		"insufficient_stock":             "stock insuffisant pour %s",
		"not_on_list":                    "%s n'était pas sur la liste",
		"nothing_planned":                "rien n'était prévu",
		"ingredient_not_in_recipe":       "%s ne fait pas partie de la recette",
	},
	LangEN: {
		MsgRephrase:       "I didn't get anything. Could you rephrase?",
		MsgNotUnderstood:  "I didn't understand the request. Could you rephrase?",
		MsgApology:        "Sorry, I couldn't process this request. Please try again in a moment.",
		MsgConfirmPrompt:  "Confirm? (yes/no)",
		MsgClarifyIntro:   "I need a few more details:",
		MsgClarifyLimit:   "I can't complete this request. Let's start over: could you rephrase it?",
		MsgApplied:        "Done.",
		MsgApplyFailed:    "I couldn't apply the change: %s",
		MsgMore:           "+%d more",
		MsgToCheck:        "to check",
		MsgSignInRequired: "Sign in to change your data.",
		MsgItemName:       "Which product for line %d?",
		MsgItemNotFound:   "I can't find \"%s\". Which product is it?",
		MsgItemChoose:     "Several products match \"%s\". Which one?",
		MsgItemQuantity:   "How much %s?",
		MsgItemUnit:       "Which unit for %s (\"%s\" is unknown)?",
		MsgNoItems:        "Which products?",
		MsgRecipeName:     "Which recipe?",
		MsgRecipeNotFound: "I can't find the recipe \"%s\". Which one?",
		MsgRecipeChoose:   "Several recipes match \"%s\". Which one?",
		MsgRecipeExists:   "The recipe \"%s\" already exists.",
		MsgRecipeServings: "For how many people?",
		MsgRecipeNotOwned: "The recipe \"%s\" is shared and cannot be changed.",
		MsgRecipeChanges:  "What should change in \"%s\"? Name an ingredient to add.",
		MsgDate:           "For which day?",
		MsgDateInvalid:    "I don't understand the date \"%s\". For which day?",
		MsgMeal:           "For which meal?",

		MsgWarnParsed:        "quantity inferred",
		MsgWarnInvalid:       "invalid quantity",
		MsgWarnMissing:       "missing quantity",
		MsgWarnUnmapped:      "unknown unit",
		MsgWarnDefaulted:     "default unit",
		MsgWarnSuspicious:    "unusual quantity",
		MsgWarnLowConfidence: "uncertain",

		"meal_breakfast": "breakfast",
		"meal_lunch":     "lunch",
		"meal_dinner":    "dinner",
		"meal_snack":     "snack",

		"headline_add_stock":             "Add to stock:",
		"headline_consume_stock":         "Remove from stock:",
		"headline_set_stock":             "Update stock:",
		"headline_add_shopping_items":    "Add to the shopping list:",
		"headline_remove_shopping_items": "Remove from the shopping list:",
		"headline_create_recipe":         "Create the recipe \"%s\" (serves %d):",
		"headline_update_recipe":         "Update the recipe \"%s\":",
		"headline_plan_meal":             "Plan \"%s\" on %s for %s (serves %d).",
		"headline_unplan_meal":           "Remove %s from %s on %s.",
		"unplan_all":                     "every dish",
		"recipe_rename":                  "rename to \"%s\"",
		"recipe_servings_to":             "serves %d",
		"recipe_add_ingredient":          "add %s",
		"recipe_remove_ingredient":       "remove %s",
		"recipe_steps":                   "%d step(s)",
		"insufficient_stock":             "not enough %s in stock",
		"not_on_list":                    "%s was not on the list",
		"nothing_planned":                "nothing was planned",
		"ingredient_not_in_recipe":       "%s is not part of the recipe",
	},
}
