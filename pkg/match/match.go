// Package match decides which metric names are tracked and how they are
// labelled, using exact or regular-expression rules.
//
// Rules are a union: a candidate matches when any rule matches it. An empty
// rule set is permissive and matches every candidate. Call sites use a
// Matcher to decide whether to record at all; the registry itself never
// consults it.
package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidRegexRule is returned when a REGEX rule does not compile.
	ErrInvalidRegexRule = errors.New("invalid regex match rule")

	// ErrUnknownRuleType is returned for a rule type other than EXACT or REGEX.
	ErrUnknownRuleType = errors.New("unknown match rule type")
)

// Type is the comparison applied by a Rule.
type Type string

const (
	// Exact compares the candidate for full equality.
	Exact Type = "EXACT"

	// Regex treats the value as a fully anchored regular expression.
	Regex Type = "REGEX"
)

// UnmarshalText accepts EXACT, EQUALS and REGEX in any case.
func (t *Type) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "", "EXACT", "EQUALS":
		*t = Exact
	case "REGEX":
		*t = Regex
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuleType, string(text))
	}
	return nil
}

// Rule is a single match rule.
type Rule struct {
	// Type defaults to Exact when empty.
	Type Type `yaml:"type" json:"type"`

	// Value is the exact string or the regular expression.
	Value string `yaml:"value" json:"value"`

	// Alias, when set, replaces the matched value in metric names.
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// RuleError reports a rule rejected at compile time.
type RuleError struct {
	Rule Rule

	// Err is ErrInvalidRegexRule or ErrUnknownRuleType.
	Err error

	// Cause is the underlying failure, if any.
	Cause error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v: %q", e.Err, e.Rule.Type)
	}
	return fmt.Sprintf("%v: %q: %v", e.Err, e.Rule.Value, e.Cause)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RuleError) Unwrap() error {
	return e.Err
}

type compiledRule struct {
	re    *regexp.Regexp
	label string
}

// Matcher is a compiled, immutable rule set. A nil Matcher is permissive.
type Matcher struct {
	exact   map[string]string // value -> label
	regexes []compiledRule
}

// Compile validates and compiles rules. An empty value is a rule like any
// other: EXACT "" matches only the empty candidate. Any REGEX rule that fails
// to compile rejects the whole set.
func Compile(rules []Rule) (*Matcher, error) {
	m := &Matcher{exact: make(map[string]string)}

	for _, r := range rules {
		label := r.Alias
		if label == "" {
			label = r.Value
		}

		switch r.Type {
		case Regex:
			re, err := regexp.Compile(`^(?:` + r.Value + `)$`)
			if err != nil {
				return nil, &RuleError{Rule: r, Err: ErrInvalidRegexRule, Cause: err}
			}
			m.regexes = append(m.regexes, compiledRule{re: re, label: label})
		case Exact, "":
			if _, exists := m.exact[r.Value]; !exists {
				m.exact[r.Value] = label
			}
		default:
			return nil, &RuleError{Rule: r, Err: ErrUnknownRuleType}
		}
	}

	return m, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(rules []Rule) *Matcher {
	m, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return m
}

// Permissive reports whether the matcher was compiled from no rules and
// therefore matches everything.
func (m *Matcher) Permissive() bool {
	if m == nil {
		return true
	}
	return len(m.exact) == 0 && len(m.regexes) == 0
}

// Matches reports whether candidate matches any rule.
func (m *Matcher) Matches(candidate string) bool {
	_, ok := m.Match(candidate)
	return ok
}

// Match returns the label for candidate. An exact rule yields its alias or
// the candidate; a regex rule yields its alias or the pattern itself, so all
// candidates matched by one pattern share one label. Exact rules are checked
// before regexes.
func (m *Matcher) Match(candidate string) (string, bool) {
	if m.Permissive() {
		return candidate, true
	}
	if label, ok := m.exact[candidate]; ok {
		return label, true
	}
	for _, r := range m.regexes {
		if r.re.MatchString(candidate) {
			return r.label, true
		}
	}
	return "", false
}

// Matches compiles rules and tests candidate against them.
func Matches(candidate string, rules []Rule) (bool, error) {
	m, err := Compile(rules)
	if err != nil {
		return false, err
	}
	return m.Matches(candidate), nil
}
