package fetch

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	outcomeOKLabelConstant        = "ok"
	outcomeTimeoutLabelConstant   = "timeout"
	outcomeErrorLabelConstant     = "error"
	outcomeCancelledLabelConstant = "cancelled"
	outcomeNoneLabelConstant      = "none"
	outcomeLabelSeparatorConstant = "|"
	unknownOutcomeLabelTemplate   = "unknown fetch outcome %q"
)

// Outcome is a set of independent flags describing how fetch attempts finished.
// A single fetch yields exactly one flag; a repository aggregates the flags of all its remotes.
type Outcome uint8

// Fetch outcome flags.
const (
	OutcomeOK Outcome = 1 << iota
	OutcomeTimeout
	OutcomeError
	OutcomeCancelled
)

var outcomeLabels = []struct {
	flag  Outcome
	label string
}{
	{flag: OutcomeOK, label: outcomeOKLabelConstant},
	{flag: OutcomeTimeout, label: outcomeTimeoutLabelConstant},
	{flag: OutcomeError, label: outcomeErrorLabelConstant},
	{flag: OutcomeCancelled, label: outcomeCancelledLabelConstant},
}

// Union returns the flags present in either outcome.
func (outcome Outcome) Union(other Outcome) Outcome {
	return outcome | other
}

// Has reports whether every flag of flags is present.
func (outcome Outcome) Has(flags Outcome) bool {
	return flags != 0 && outcome&flags == flags
}

// Labels lists the flag names in a stable order.
func (outcome Outcome) Labels() []string {
	labels := []string{}
	for _, candidate := range outcomeLabels {
		if outcome.Has(candidate.flag) {
			labels = append(labels, candidate.label)
		}
	}
	return labels
}

// String renders the flags as "ok|timeout", or "none" for the empty set.
func (outcome Outcome) String() string {
	labels := outcome.Labels()
	if len(labels) == 0 {
		return outcomeNoneLabelConstant
	}
	return strings.Join(labels, outcomeLabelSeparatorConstant)
}

// Summary aggregates the outcomes of every fetch made for one repository.
// The zero value means no fetch was attempted, which is distinct from an attempted set with no flags.
type Summary struct {
	attempted bool
	outcome   Outcome
}

// NewSummary returns a summary marked attempted and holding outcome.
func NewSummary(outcome Outcome) Summary {
	return Summary{attempted: true, outcome: outcome}
}

// Record marks the summary attempted and folds in outcome.
func (summary *Summary) Record(outcome Outcome) {
	summary.attempted = true
	summary.outcome = summary.outcome.Union(outcome)
}

// Attempted reports whether any fetch was recorded.
func (summary Summary) Attempted() bool {
	return summary.attempted
}

// Outcome returns the aggregate flags and whether any fetch was attempted.
func (summary Summary) Outcome() (Outcome, bool) {
	return summary.outcome, summary.attempted
}

// Has reports whether an attempted summary carries flags.
func (summary Summary) Has(flags Outcome) bool {
	return summary.attempted && summary.outcome.Has(flags)
}

// String renders the aggregate, or an empty string when nothing was attempted.
func (summary Summary) String() string {
	if !summary.attempted {
		return ""
	}
	return summary.outcome.String()
}

// MarshalText encodes the summary as its String form so snapshots keep the absent/empty distinction.
func (summary Summary) MarshalText() ([]byte, error) {
	return []byte(summary.String()), nil
}

// UnmarshalText decodes the form produced by MarshalText.
func (summary *Summary) UnmarshalText(text []byte) error {
	trimmed := strings.TrimSpace(string(text))
	*summary = Summary{}
	if len(trimmed) == 0 {
		return nil
	}
	summary.attempted = true
	if trimmed == outcomeNoneLabelConstant {
		return nil
	}
	for _, label := range strings.Split(trimmed, outcomeLabelSeparatorConstant) {
		flag, known := outcomeForLabel(label)
		if !known {
			return errors.Newf(unknownOutcomeLabelTemplate, label)
		}
		summary.outcome = summary.outcome.Union(flag)
	}
	return nil
}

func outcomeForLabel(label string) (Outcome, bool) {
	for _, candidate := range outcomeLabels {
		if candidate.label == label {
			return candidate.flag, true
		}
	}
	return 0, false
}
