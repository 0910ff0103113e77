package mealplan

import (
	"strings"
	"time"

	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"lundi": time.Monday, "monday": time.Monday,
	"mardi": time.Tuesday, "tuesday": time.Tuesday,
	"mercredi": time.Wednesday, "wednesday": time.Wednesday,
	"jeudi": time.Thursday, "thursday": time.Thursday,
	"vendredi": time.Friday, "friday": time.Friday,
	"samedi": time.Saturday, "saturday": time.Saturday,
	"dimanche": time.Sunday, "sunday": time.Sunday,
}

// ParseDate resolves raw against now. It accepts YYYY-MM-DD, DD/MM/YYYY,
// today, tomorrow, the day after tomorrow and weekday names (next
// occurrence, today excluded), in French or English.
func ParseDate(raw string, now time.Time) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.Format(dateLayout), true
	}
	if t, err := time.Parse("02/01/2006", raw); err == nil {
		return t.Format(dateLayout), true
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	key := namekey.ToKey(raw)
	switch key {
	case "aujourd-hui", "aujourdhui", "today", "ce-soir", "ce-midi", "tonight":
		return today.Format(dateLayout), true
	case "demain", "tomorrow", "demain-soir", "demain-midi":
		return today.AddDate(0, 0, 1).Format(dateLayout), true
	case "apres-demain", "day-after-tomorrow", "the-day-after-tomorrow":
		return today.AddDate(0, 0, 2).Format(dateLayout), true
	}

	for _, tok := range namekey.Tokens(key) {
		if wd, ok := weekdays[tok]; ok {
			delta := (int(wd) - int(today.Weekday()) + 7) % 7
			if delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta).Format(dateLayout), true
		}
	}
	return "", false
}

var mealAliases = map[string]models.MealSlot{
	"breakfast":      models.MealBreakfast,
	"petit-dejeuner": models.MealBreakfast,
	"petit-dej":      models.MealBreakfast,
	"matin":          models.MealBreakfast,
	"lunch":          models.MealLunch,
	"dejeuner":       models.MealLunch,
	"midi":           models.MealLunch,
	"ce-midi":        models.MealLunch,
	"dinner":         models.MealDinner,
	"diner":          models.MealDinner,
	"soir":           models.MealDinner,
	"ce-soir":        models.MealDinner,
	"souper":         models.MealDinner,
	"tonight":        models.MealDinner,
	"snack":          models.MealSnack,
	"gouter":         models.MealSnack,
}

// ParseMeal maps a meal name in French or English to a slot.
func ParseMeal(raw string) (models.MealSlot, bool) {
	m, ok := mealAliases[namekey.ToKey(raw)]
	return m, ok
}
