package compiler

import (
	"testing"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingRails = `
# Greeting rails
define user express greeting
  "hello"
  "hi there"   # trailing comment

define bot express greeting
  "Hello $name! How can I help you today?"

define flow greeting
  user express greeting
  bot express greeting
`

func TestParse_Definitions(t *testing.T) {
	doc, errs := Parse("greeting.co", []byte(greetingRails))
	require.False(t, errs.HasErrors(), errs.Error())

	require.Len(t, doc.Intents, 1)
	assert.Equal(t, "express greeting", doc.Intents[0].Label)
	assert.Equal(t, []string{"hello", "hi there"}, doc.Intents[0].Examples)
	assert.Equal(t, 3, doc.Intents[0].Location.Line)

	require.Len(t, doc.Messages, 1)
	assert.Equal(t, []string{"Hello $name! How can I help you today?"}, doc.Messages[0].Templates)

	require.Len(t, doc.Flows, 1)
	f := doc.Flows[0]
	assert.Equal(t, "greeting", f.Name)
	assert.Equal(t, []domain.Step{
		{Kind: domain.StepExpectUser, Intent: "express greeting", Line: 11},
		{Kind: domain.StepBotMessage, Message: "express greeting", Line: 12},
	}, f.Steps)
}

func TestParse_FlowStatements(t *testing.T) {
	src := `
define flow answer question
  user ask   question
  $account = execute lookup_account
  check self_check_input
  if $account
    bot ...
  else
    bot inform no account
    stop
  think "answered"
  execute audit
  user ...
`
	doc, errs := Parse("qa.co", []byte(src))
	require.False(t, errs.HasErrors(), errs.Error())
	require.Len(t, doc.Flows, 1)

	steps := doc.Flows[0].Steps
	require.Len(t, steps, 7)
	assert.Equal(t, domain.Step{Kind: domain.StepExpectUser, Intent: "ask question", Line: 3}, steps[0])
	assert.Equal(t, domain.Step{Kind: domain.StepAction, Action: "lookup_account", SaveAs: "account", Line: 4}, steps[1])
	assert.Equal(t, domain.Step{Kind: domain.StepGuardCheck, Guard: "self_check_input", Line: 5}, steps[2])

	branch := steps[3]
	assert.Equal(t, domain.StepBranch, branch.Kind)
	assert.Equal(t, "account", branch.Condition.Var)
	require.Len(t, branch.Then, 1)
	assert.Equal(t, domain.Wildcard, branch.Then[0].Message)
	require.Len(t, branch.Else, 2)
	assert.Equal(t, "inform no account", branch.Else[0].Message)
	assert.Equal(t, domain.StepStop, branch.Else[1].Kind)

	assert.Equal(t, domain.Step{Kind: domain.StepThink, Text: "answered", Line: 11}, steps[4])
	assert.Equal(t, domain.StepAction, steps[5].Kind)
	assert.True(t, steps[6].IsWildcard())
}

func TestParse_NestedBranches(t *testing.T) {
	src := `
define flow nested
  user ask
  if $a
    if not $b
      bot one
    else
      bot two
  bot three
`
	doc, errs := Parse("n.co", []byte(src))
	require.False(t, errs.HasErrors(), errs.Error())

	steps := doc.Flows[0].Steps
	require.Len(t, steps, 3)
	inner := steps[1].Then[0]
	assert.True(t, inner.Condition.Negate)
	assert.Equal(t, "one", inner.Then[0].Message)
	assert.Equal(t, "two", inner.Else[0].Message)
	assert.Equal(t, "three", steps[2].Message)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		message    string
		suggestion string
		line       int
	}{
		{
			name:    "unquoted example",
			src:     "define user greet\n  hello\n",
			message: "expected a quoted string",
			line:    2,
		},
		{
			name:       "misspelled keyword",
			src:        "define flow f\n  user greet\n  bto greet\n",
			message:    `unknown statement "bto"`,
			suggestion: "Did you mean 'bot'?",
			line:       3,
		},
		{
			name:       "misspelled define",
			src:        "defin user greet\n  \"hi\"\n",
			message:    "expected 'define",
			suggestion: "Did you mean 'define'?",
			line:       1,
		},
		{
			name:       "unknown define kind",
			src:        "define flwo f\n  user greet\n",
			message:    `unknown define kind "flwo"`,
			suggestion: "Did you mean 'flow'?",
			line:       1,
		},
		{
			name:    "else without if",
			src:     "define flow f\n  user greet\n  else\n    bot x\n",
			message: "else without a matching if",
			line:    3,
		},
		{
			name:    "if without body",
			src:     "define flow f\n  user greet\n  if $x\n  bot y\n",
			message: "if has no body",
			line:    3,
		},
		{
			name:    "bad condition",
			src:     "define flow f\n  user greet\n  if x ==\n    bot y\n",
			message: "invalid condition",
			line:    3,
		},
		{
			name:    "stop with argument",
			src:     "define flow f\n  user greet\n  stop now\n",
			message: "stop takes no arguments",
			line:    3,
		},
		{
			name:    "empty intent",
			src:     "define user greet\n",
			message: `intent "greet" has no examples`,
			line:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := Parse("bad.co", []byte(tt.src))
			require.True(t, errs.HasErrors())

			first := errs.Errors[0]
			assert.Contains(t, first.Message, tt.message)
			assert.Equal(t, tt.suggestion, first.Suggestion)
			assert.Equal(t, tt.line, first.Location.Line)
			assert.Equal(t, "bad.co", first.Location.File)
		})
	}
}

func TestParse_AccumulatesErrors(t *testing.T) {
	src := "define user a\n  nope\n  \"ok\"\ndefine bot b\n  nope\n  \"ok\"\n"
	_, errs := Parse("x.co", []byte(src))
	assert.Equal(t, 2, errs.Count())
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr string
		want domain.Condition
	}{
		{"$ok", domain.Condition{Var: "ok", Source: "$ok"}},
		{"not $ok", domain.Condition{Var: "ok", Negate: true, Source: "not $ok"}},
		{`$tier == "gold"`, domain.Condition{Var: "tier", Op: "==", Value: "gold", Source: `$tier == "gold"`}},
		{"$count >= 3", domain.Condition{Var: "count", Op: ">=", Value: 3.0, Source: "$count >= 3"}},
		{"$flag != true", domain.Condition{Var: "flag", Op: "!=", Value: true, Source: "$flag != true"}},
		{"$tier == silver", domain.Condition{Var: "tier", Op: "==", Value: "silver", Source: "$tier == silver"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseCondition(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	_, err := ParseCondition("$count > many")
	assert.Error(t, err)
	_, err = ParseCondition("count")
	assert.Error(t, err)
}
