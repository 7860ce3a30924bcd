package dsl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/pkg/domain"
)

// SourceName is the file name reported in errors for built rails.
const SourceName = "dsl.co"

type definition struct {
	kind  string
	label string
	lines []string
}

// Builder accumulates intent, message and flow definitions in declaration order.
type Builder struct {
	order []any
}

// New creates a new rails builder.
func New() *Builder {
	return &Builder{}
}

// User defines (or extends) a canonical intent with examples.
func (b *Builder) User(label string, examples ...string) *Builder {
	b.order = append(b.order, definition{kind: "user", label: label, lines: examples})
	return b
}

// Bot defines (or extends) a bot message with templates.
func (b *Builder) Bot(label string, templates ...string) *Builder {
	b.order = append(b.order, definition{kind: "bot", label: label, lines: templates})
	return b
}

// Flow starts a new flow definition.
func (b *Builder) Flow(name string) *FlowBuilder {
	f := &FlowBuilder{}
	b.order = append(b.order, namedFlow{name: name, body: f})
	return f
}

type namedFlow struct {
	name string
	body *FlowBuilder
}

// Bytes renders the definitions in the rails definition language.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	for i, item := range b.order {
		if i > 0 {
			buf.WriteByte('\n')
		}
		switch d := item.(type) {
		case definition:
			fmt.Fprintf(&buf, "define %s %s\n", d.kind, d.label)
			for _, l := range d.lines {
				fmt.Fprintf(&buf, "  %s\n", strconv.Quote(l))
			}
		case namedFlow:
			fmt.Fprintf(&buf, "define flow %s\n", d.name)
			d.body.write(&buf, 1)
		}
	}
	return buf.Bytes()
}

// String returns the rendered definitions.
func (b *Builder) String() string {
	return string(b.Bytes())
}

// Build compiles the definitions with the default configuration.
func (b *Builder) Build() (*domain.Rails, error) {
	return compiler.Compile([]compiler.Source{{Name: SourceName, Data: b.Bytes()}}, nil)
}

// FlowBuilder provides a fluent API for the statements of a flow.
type FlowBuilder struct {
	stmts []stmt
}

type stmt struct {
	text      string
	then, alt *FlowBuilder
}

func (f *FlowBuilder) add(format string, args ...any) *FlowBuilder {
	f.stmts = append(f.stmts, stmt{text: fmt.Sprintf(format, args...)})
	return f
}

// User waits for the user to express intent. Use domain.Wildcard to accept anything.
func (f *FlowBuilder) User(intent string) *FlowBuilder {
	return f.add("user %s", intent)
}

// Bot emits the message registered under label. Use domain.Wildcard for a generated answer.
func (f *FlowBuilder) Bot(label string) *FlowBuilder {
	return f.add("bot %s", label)
}

// Check runs the named guard against the latest user message.
func (f *FlowBuilder) Check(guard string) *FlowBuilder {
	return f.add("check %s", guard)
}

// Execute runs a registered action and discards its result.
func (f *FlowBuilder) Execute(action string) *FlowBuilder {
	return f.add("execute %s", action)
}

// ExecuteInto runs a registered action and stores its result in $variable.
func (f *FlowBuilder) ExecuteInto(variable, action string) *FlowBuilder {
	return f.add("$%s = execute %s", strings.TrimPrefix(variable, "$"), action)
}

// Think records a trace entry.
func (f *FlowBuilder) Think(text string) *FlowBuilder {
	return f.add("think %s", strconv.Quote(text))
}

// Stop ends the flow.
func (f *FlowBuilder) Stop() *FlowBuilder {
	return f.add("stop")
}

// If branches on a condition such as "$n > 3" or "not $flag". Either arm may be nil.
func (f *FlowBuilder) If(condition string, then, otherwise func(*FlowBuilder)) *FlowBuilder {
	s := stmt{text: "if " + condition, then: &FlowBuilder{}}
	if then != nil {
		then(s.then)
	}
	if otherwise != nil {
		s.alt = &FlowBuilder{}
		otherwise(s.alt)
	}
	f.stmts = append(f.stmts, s)
	return f
}

func (f *FlowBuilder) write(buf *bytes.Buffer, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range f.stmts {
		buf.WriteString(indent + s.text + "\n")
		if s.then != nil {
			s.then.write(buf, depth+1)
		}
		if s.alt != nil {
			buf.WriteString(indent + "else\n")
			s.alt.write(buf, depth+1)
		}
	}
}
