package flags

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	choiceUnsupportedTemplate = "unsupported value %q, expected one of %s"
	choiceListSeparator       = ", "
	choiceUsageSeparator      = "|"
	choiceUsageTemplate       = "`<%s>`"
)

// ErrUnsupportedChoice marks values outside the allowed set of a choice flag.
var ErrUnsupportedChoice = errors.New("unsupported choice")

// MatchChoice returns the allowed choice that equals value once case and surrounding spaces are ignored.
// A blank value selects fallback.
func MatchChoice(value string, choices []string, fallback string) (string, error) {
	normalizedValue := normalizeChoice(value)
	if len(normalizedValue) == 0 {
		return normalizeChoice(fallback), nil
	}
	allowed := distinctChoices(choices)
	for _, choice := range allowed {
		if choice == normalizedValue {
			return choice, nil
		}
	}
	return "", errors.Mark(errors.Newf(choiceUnsupportedTemplate, value, strings.Join(allowed, choiceListSeparator)), ErrUnsupportedChoice)
}

// FormatChoiceUsage renders the allowed choices for flag help with the default one in upper case.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	rendered := distinctChoices(choices)
	for index, choice := range rendered {
		if choice == normalizedDefault {
			rendered[index] = strings.ToUpper(choice)
		}
	}
	usage := fmt.Sprintf(choiceUsageTemplate, strings.Join(rendered, choiceUsageSeparator))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return usage
	}
	return usage + " " + trimmedDescription
}

func distinctChoices(choices []string) []string {
	distinct := make([]string, 0, len(choices))
	for _, choice := range choices {
		normalized := normalizeChoice(choice)
		if len(normalized) == 0 || containsChoice(distinct, normalized) {
			continue
		}
		distinct = append(distinct, normalized)
	}
	return distinct
}

func containsChoice(choices []string, candidate string) bool {
	for _, choice := range choices {
		if choice == candidate {
			return true
		}
	}
	return false
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
