package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/sites"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for domain values
	if err := Validate.RegisterValidation("site", validateSite); err != nil {
		panic(fmt.Sprintf("failed to register site validator: %v", err))
	}
	if err := Validate.RegisterValidation("day_key", validateDayKey); err != nil {
		panic(fmt.Sprintf("failed to register day_key validator: %v", err))
	}
	if err := Validate.RegisterValidation("site_category", validateCategory); err != nil {
		panic(fmt.Sprintf("failed to register site_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("tab_event_type", validateTabEventType); err != nil {
		panic(fmt.Sprintf("failed to register tab_event_type validator: %v", err))
	}
}

// validateSite validates that a string is a normalized site identifier
func validateSite(fl validator.FieldLevel) bool {
	return sites.Valid(fl.Field().String())
}

// validateDayKey validates a YYYY-MM-DD day key
func validateDayKey(fl validator.FieldLevel) bool {
	_, err := models.ParseDayKey(fl.Field().String())
	return err == nil
}

// validateCategory validates that a string is a Category enum value
func validateCategory(fl validator.FieldLevel) bool {
	return models.Category(fl.Field().String()).IsValid()
}

// validateTabEventType validates that a string is a TabEventType enum value
func validateTabEventType(fl validator.FieldLevel) bool {
	switch models.TabEventType(fl.Field().String()) {
	case models.TabEventActivated, models.TabEventUpdated, models.TabEventAlarm:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
