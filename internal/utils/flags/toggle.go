package flags

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
)

const (
	toggleTrueValueConstant           = "true"
	toggleFalseValueConstant          = "false"
	toggleParseErrorTemplate          = "invalid toggle value %q"
	toggleEnabledPlaceholderConstant  = "<YES|no>"
	toggleDisabledPlaceholderConstant = "<yes|NO>"
	longFlagPrefixConstant            = "--"
	flagValueSeparatorConstant        = "="
)

// toggleLiterals maps every accepted spelling to its value.
var toggleLiterals = map[string]bool{
	"true": true, "yes": true, "on": true, "1": true, "t": true, "y": true,
	"false": false, "no": false, "off": false, "0": false, "f": false, "n": false,
}

// ErrInvalidToggleValue marks values that are neither a true nor a false literal.
var ErrInvalidToggleValue = errors.New("invalid toggle value")

var toggleRegistry = struct {
	sync.RWMutex
	names map[string]struct{}
}{names: map[string]struct{}{}}

// AddToggleFlag registers a long boolean flag that also accepts yes/no style values, so "--fetch=no" disables fetching.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.Var(newToggleValue(defaultValue, target), name, usage)
	flag := flagSet.Lookup(name)
	flag.NoOptDefVal = toggleTrueValueConstant
	flag.Usage = toggleUsage(usage, defaultValue)

	toggleRegistry.Lock()
	toggleRegistry.names[name] = struct{}{}
	toggleRegistry.Unlock()
}

// IsToggleLiteral reports whether value spells a toggle state.
func IsToggleLiteral(value string) bool {
	_, known := toggleLiterals[strings.ToLower(strings.TrimSpace(value))]
	return known
}

// NormalizeToggleArguments joins a registered toggle with a following literal, so "--fetch no" becomes
// "--fetch=no". A following argument that is not a literal, such as a repository path, stays positional.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == longFlagPrefixConstant {
			return append(normalized, arguments[index:]...)
		}
		if isBareToggle(current) && index+1 < len(arguments) && IsToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func isBareToggle(argument string) bool {
	name, isLong := strings.CutPrefix(argument, longFlagPrefixConstant)
	if !isLong || len(name) == 0 || strings.Contains(name, flagValueSeparatorConstant) {
		return false
	}
	toggleRegistry.RLock()
	defer toggleRegistry.RUnlock()
	_, registered := toggleRegistry.names[name]
	return registered
}

func toggleUsage(description string, defaultValue bool) string {
	placeholder := toggleDisabledPlaceholderConstant
	if defaultValue {
		placeholder = toggleEnabledPlaceholderConstant
	}
	trimmed := strings.TrimSpace(description)
	if len(trimmed) == 0 {
		return fmt.Sprintf("`%s`", placeholder)
	}
	return fmt.Sprintf("`%s` %s", placeholder, trimmed)
}

type toggleValue struct {
	current bool
	target  *bool
}

func newToggleValue(defaultValue bool, target *bool) *toggleValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleValue{current: defaultValue, target: target}
}

func (value *toggleValue) Set(raw string) error {
	parsed, parseError := parseToggleValue(raw)
	if parseError != nil {
		return parseError
	}
	value.current = parsed
	if value.target != nil {
		*value.target = parsed
	}
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueValueConstant
	}
	return toggleFalseValueConstant
}

func (value *toggleValue) Type() string {
	return "bool"
}

func parseToggleValue(raw string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if len(normalized) == 0 {
		return true, nil
	}
	parsed, known := toggleLiterals[normalized]
	if !known {
		return false, errors.Mark(errors.Newf(toggleParseErrorTemplate, raw), ErrInvalidToggleValue)
	}
	return parsed, nil
}
