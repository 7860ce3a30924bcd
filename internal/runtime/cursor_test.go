package runtime

import (
	"testing"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestCursorNavigation(t *testing.T) {
	steps := []domain.Step{
		{Kind: domain.StepExpectUser, Intent: "a"},
		{Kind: domain.StepBranch,
			Then: []domain.Step{{Kind: domain.StepThink}, {Kind: domain.StepBotMessage, Message: "x"}},
			Else: nil,
		},
		{Kind: domain.StepStop},
	}

	assert.Equal(t, []int{1}, advance(steps, []int{0}))
	assert.Equal(t, []int{1, armThen, 0}, enterArm(steps, []int{1}, armThen))
	assert.Equal(t, []int{2}, enterArm(steps, []int{1}, armElse), "empty arm skips to the next step")
	assert.Equal(t, []int{1, armThen, 1}, advance(steps, []int{1, armThen, 0}))
	assert.Equal(t, []int{2}, advance(steps, []int{1, armThen, 1}))
	assert.Nil(t, advance(steps, []int{2}))

	s, ok := stepAt(steps, []int{1, armThen, 1})
	assert.True(t, ok)
	assert.Equal(t, "x", s.Message)

	_, ok = stepAt(steps, []int{0, armThen, 0})
	assert.False(t, ok, "only branches have arms")
	_, ok = stepAt(steps, []int{1, armThen})
	assert.False(t, ok)
}

func TestEvaluate(t *testing.T) {
	vars := map[string]any{
		"n":     3,
		"f":     2.5,
		"s":     "gold",
		"num":   "42",
		"empty": "",
		"yes":   true,
		"list":  []any{},
	}
	cond := func(v, op string, val any, neg bool) *domain.Condition {
		return &domain.Condition{Var: v, Op: op, Value: val, Negate: neg}
	}
	tests := []struct {
		name string
		c    *domain.Condition
		want bool
	}{
		{"truthy int", cond("n", "", nil, false), true},
		{"empty string falsy", cond("empty", "", nil, false), false},
		{"empty list falsy", cond("list", "", nil, false), false},
		{"missing falsy", cond("nope", "", nil, false), false},
		{"negated missing", cond("nope", "", nil, true), true},
		{"bool", cond("yes", "", nil, false), true},
		{"int equals float literal", cond("n", "==", 3.0, false), true},
		{"string equals", cond("s", "==", "gold", false), true},
		{"string not equal", cond("s", "!=", "silver", false), true},
		{"missing not equal", cond("nope", "!=", "x", false), true},
		{"missing never equal", cond("nope", "==", "", false), false},
		{"greater", cond("f", ">", 2.0, false), true},
		{"less equal", cond("n", "<=", 3.0, false), true},
		{"numeric string ordering", cond("num", ">=", 40.0, false), true},
		{"non-numeric ordering", cond("s", ">", 1.0, false), false},
		{"numeric string compares as text", cond("num", "==", 42.0, false), true},
		{"nil condition", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(tt.c, vars))
		})
	}
}

func TestInterpolate(t *testing.T) {
	vars := map[string]any{"name": "Ada", "n": 2.0, "nil": nil}
	assert.Equal(t, "Hi Ada, you have 2 items", interpolate("Hi $name, you have $n items", vars))
	assert.Equal(t, "cost $5 and $unknown and $nil", interpolate("cost $5 and $unknown and $nil", vars))
}
