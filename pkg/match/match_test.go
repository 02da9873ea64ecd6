package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMatches_Union(t *testing.T) {
	rules := []Rule{
		{Type: Exact, Value: "foo"},
		{Type: Regex, Value: "bar.*"},
	}

	tests := []struct {
		candidate string
		want      bool
	}{
		{"foo", true},
		{"barbaz", true},
		{"bar", true},
		{"foobar", false},
		{"xbar", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			got, err := Matches(tt.candidate, rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_EmptyRulesArePermissive(t *testing.T) {
	for _, candidate := range []string{"", "anything", "svc.a.requests"} {
		got, err := Matches(candidate, nil)
		require.NoError(t, err)
		assert.True(t, got, "empty rule set should match %q", candidate)
	}

	var nilMatcher *Matcher
	assert.True(t, nilMatcher.Matches("x"))
}

func TestMatches_EmptyValueIsExact(t *testing.T) {
	m, err := Compile([]Rule{{Type: Exact, Value: ""}})
	require.NoError(t, err)
	assert.False(t, m.Permissive())
	assert.True(t, m.Matches(""))
	assert.False(t, m.Matches("anything"))

	m, err = Compile([]Rule{{Type: Regex, Value: ""}})
	require.NoError(t, err)
	assert.True(t, m.Matches(""))
	assert.False(t, m.Matches("x"))
}

func TestCompile_InvalidRegex(t *testing.T) {
	_, err := Compile([]Rule{
		{Type: Exact, Value: "ok"},
		{Type: Regex, Value: "broken(["},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRegexRule))

	var ruleErr *RuleError
	require.True(t, errors.As(err, &ruleErr))
	assert.Equal(t, "broken([", ruleErr.Rule.Value)
	assert.NotNil(t, ruleErr.Cause)

	_, err = Matches("anything", []Rule{{Type: Regex, Value: "("}})
	assert.ErrorIs(t, err, ErrInvalidRegexRule)
}

func TestCompile_UnknownType(t *testing.T) {
	_, err := Compile([]Rule{{Type: "GLOB", Value: "*"}})
	assert.ErrorIs(t, err, ErrUnknownRuleType)
	assert.NotErrorIs(t, err, ErrInvalidRegexRule)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, Type("GLOB"), ruleErr.Rule.Type)

	var typ Type
	assert.ErrorIs(t, typ.UnmarshalText([]byte("glob")), ErrUnknownRuleType)
}

func TestMatcher_RegexIsAnchored(t *testing.T) {
	m := MustCompile([]Rule{{Type: Regex, Value: "/users/[0-9]+"}})

	assert.True(t, m.Matches("/users/42"))
	assert.False(t, m.Matches("/users/42/orders"))
	assert.False(t, m.Matches("/api/users/42"))
}

func TestMatcher_Labels(t *testing.T) {
	m := MustCompile([]Rule{
		{Type: Exact, Value: "/login"},
		{Type: Exact, Value: "/health", Alias: "health"},
		{Type: Regex, Value: "/users/.*"},
		{Type: Regex, Value: "/orders/.*", Alias: "orders"},
	})

	tests := []struct {
		candidate string
		label     string
		ok        bool
	}{
		{"/login", "/login", true},
		{"/health", "health", true},
		{"/users/7", "/users/.*", true},
		{"/orders/9", "orders", true},
		{"/other", "", false},
	}

	for _, tt := range tests {
		label, ok := m.Match(tt.candidate)
		assert.Equal(t, tt.ok, ok, tt.candidate)
		assert.Equal(t, tt.label, label, tt.candidate)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile([]Rule{{Type: Regex, Value: "["}})
	})
}

func TestRule_UnmarshalYAML(t *testing.T) {
	var rules []Rule
	err := yaml.Unmarshal([]byte(`
- value: /health
- type: equals
  value: /login
- type: regex
  value: "/users/.*"
  alias: users
`), &rules)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, Type(""), rules[0].Type, "omitted type stays empty and compiles as exact")
	assert.Equal(t, Exact, rules[1].Type)
	assert.Equal(t, Regex, rules[2].Type)
	assert.Equal(t, "users", rules[2].Alias)

	err = yaml.Unmarshal([]byte(`[{type: glob, value: x}]`), &rules)
	assert.Error(t, err)
}
