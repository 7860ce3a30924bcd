// Package validator checks a compiled rail set for dangling references and
// unreachable definitions.
package validator

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/pkg/domain"
)

// Catalog lists the names resolvable at runtime besides those defined in the rails.
type Catalog struct {
	// GuardKinds are built-in guard kinds and host-registered guards.
	GuardKinds []string
	// Actions are registered action names.
	Actions []string
}

// Result holds fatal errors and advisory warnings.
type Result struct {
	Errors   *compiler.ErrorList
	Warnings []*compiler.Error
}

// Err returns the errors as an error, or nil.
func (r Result) Err() error {
	return r.Errors.ToError()
}

type checker struct {
	rails  *domain.Rails
	cat    Catalog
	res    Result
	intent map[string]bool
	bot    map[string]bool
}

// Validate checks every reference in rails against its own definitions and cat.
func Validate(rails *domain.Rails, cat Catalog) Result {
	c := &checker{
		rails:  rails,
		cat:    cat,
		res:    Result{Errors: compiler.NewErrorList()},
		intent: make(map[string]bool),
		bot:    make(map[string]bool),
	}

	for _, f := range rails.Flows {
		if f.Name == domain.FallbackFlow {
			continue
		}
		c.steps(f, f.Steps)
	}
	c.guards()
	c.checkpoints()
	c.shadowing()
	c.unused()
	return c.res
}

func (c *checker) errorf(loc compiler.Location, suggestion, format string, args ...any) {
	c.res.Errors.AddErrorWithSuggestion(compiler.ErrorTypeReference, loc, suggestion, format, args...)
}

func (c *checker) warnf(loc compiler.Location, format string, args ...any) {
	c.res.Warnings = append(c.res.Warnings, &compiler.Error{
		Type:     compiler.ErrorTypeStructural,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

func stepLoc(f domain.Flow, s domain.Step) compiler.Location {
	return compiler.Location{File: f.File, Line: s.Line, Column: 1}
}

func (c *checker) steps(f domain.Flow, steps []domain.Step) {
	for _, s := range steps {
		switch s.Kind {
		case domain.StepExpectUser:
			c.intent[s.Intent] = true
			if s.Intent == domain.Wildcard {
				continue
			}
			if _, ok := c.rails.Intent(s.Intent); !ok {
				c.errorf(stepLoc(f, s), compiler.Suggest(s.Intent, c.intentLabels()),
					"flow %q expects undefined intent %q", f.Name, s.Intent)
			}
		case domain.StepBotMessage:
			c.bot[s.Message] = true
			if s.Message == domain.Wildcard {
				continue
			}
			if len(c.rails.Templates(s.Message)) == 0 {
				c.errorf(stepLoc(f, s), compiler.Suggest(s.Message, c.messageLabels()),
					"flow %q uses undefined bot message %q", f.Name, s.Message)
			}
		case domain.StepGuardCheck:
			if !c.guardResolvable(s.Guard) {
				c.errorf(stepLoc(f, s), compiler.Suggest(s.Guard, c.guardNames()),
					"flow %q checks unknown guard %q", f.Name, s.Guard)
			}
		case domain.StepAction:
			if !slices.Contains(c.cat.Actions, s.Action) {
				c.errorf(stepLoc(f, s), compiler.Suggest(s.Action, c.cat.Actions),
					"flow %q executes unregistered action %q", f.Name, s.Action)
			}
		case domain.StepBranch:
			c.steps(f, s.Then)
			c.steps(f, s.Else)
		}
	}
}

func (c *checker) guardResolvable(name string) bool {
	if _, ok := c.rails.Guards[name]; ok {
		return true
	}
	return slices.Contains(c.cat.GuardKinds, name)
}

func (c *checker) guards() {
	names := make([]string, 0, len(c.rails.Guards))
	for name := range c.rails.Guards {
		names = append(names, name)
	}
	sort.Strings(names)

	loc := compiler.Location{File: "config.yml"}
	for _, name := range names {
		g := c.rails.Guards[name]
		if !slices.Contains(c.cat.GuardKinds, g.Kind) {
			c.errorf(loc, compiler.Suggest(g.Kind, c.cat.GuardKinds), "guard %q has unknown kind %q", name, g.Kind)
		}
		if g.Message != "" {
			c.bot[g.Message] = true
			if len(c.rails.Templates(g.Message)) == 0 {
				c.errorf(loc, compiler.Suggest(g.Message, c.messageLabels()),
					"guard %q uses undefined bot message %q", name, g.Message)
			}
		}
	}
}

func (c *checker) checkpoints() {
	loc := compiler.Location{File: "config.yml"}
	for _, cp := range domain.Checkpoints {
		for _, name := range c.rails.Checkpoints[cp] {
			if !c.guardResolvable(name) {
				c.errorf(loc, compiler.Suggest(name, c.guardNames()),
					"rails.%s references unknown guard %q", cp, name)
			}
		}
	}
	c.bot[c.rails.RejectMessage] = true
	c.bot[c.rails.UnavailableMessage] = true
}

// shadowing warns about flows that can never be selected because an earlier
// flow starts with the same intent.
func (c *checker) shadowing() {
	first := make(map[string]string)
	for _, f := range c.rails.Flows {
		if f.Name == domain.FallbackFlow || len(f.Steps) == 0 || f.Steps[0].Kind != domain.StepExpectUser {
			continue
		}
		intent := f.Steps[0].Intent
		if prev, ok := first[intent]; ok {
			c.warnf(compiler.Location{File: f.File, Line: f.Line, Column: 1},
				"flow %q is unreachable: flow %q also starts with user %s and is declared first", f.Name, prev, intent)
			continue
		}
		first[intent] = f.Name
	}
}

func (c *checker) unused() {
	for _, in := range c.rails.Intents {
		if !c.intent[in.Label] {
			c.warnf(compiler.Location{File: c.rails.Source}, "intent %q is not used by any flow", in.Label)
		}
	}
	for _, label := range c.messageLabels() {
		if !c.bot[label] && label != domain.FallbackMessage {
			c.warnf(compiler.Location{File: c.rails.Source}, "bot message %q is not used", label)
		}
	}
}

func (c *checker) intentLabels() []string {
	out := make([]string, len(c.rails.Intents))
	for i, in := range c.rails.Intents {
		out[i] = in.Label
	}
	return out
}

func (c *checker) messageLabels() []string {
	out := make([]string, 0, len(c.rails.Messages))
	for label := range c.rails.Messages {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

func (c *checker) guardNames() []string {
	out := slices.Clone(c.cat.GuardKinds)
	for name := range c.rails.Guards {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
