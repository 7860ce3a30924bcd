package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
)

// Keywords accepted inside a flow body.
var Keywords = []string{"user", "bot", "check", "execute", "if", "else", "think", "stop"}

// DefineKinds are the block kinds accepted after "define".
var DefineKinds = []string{"user", "bot", "flow"}

// IntentDef is a "define user" block.
type IntentDef struct {
	domain.CanonicalIntent
	Location Location
}

// MessageDef is a "define bot" block.
type MessageDef struct {
	Label     string
	Templates []string
	Location  Location
}

// FlowDef is a "define flow" block.
type FlowDef struct {
	domain.Flow
	Location Location
}

// Document is the parsed content of one rail file, in declaration order.
type Document struct {
	File     string
	Intents  []IntentDef
	Messages []MessageDef
	Flows    []FlowDef
}

type line struct {
	no     int
	indent int
	text   string
}

var assignRe = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)\s*=\s*execute\s+(\S+)$`)

// NormalizeLabel collapses runs of whitespace so that labels compare reliably.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Parse reads one rail file. It always returns a Document holding whatever
// could be parsed, together with the problems found.
func Parse(file string, src []byte) (*Document, *ErrorList) {
	p := &parser{file: file, errs: NewErrorList()}
	doc := &Document{File: file}

	lines := p.split(string(src))
	for i := 0; i < len(lines); {
		header := lines[i]
		i++
		start := i
		for i < len(lines) && lines[i].indent > 0 {
			i++
		}
		body := lines[start:i]

		if header.indent > 0 {
			p.errorf(ErrorTypeSyntax, header, "unexpected indentation outside of a define block")
			continue
		}

		kw, rest := cutWord(header.text)
		if kw != "define" {
			p.suggest(ErrorTypeSyntax, header, Suggest(kw, []string{"define"}), "expected 'define user|bot|flow <name>', got %q", header.text)
			continue
		}
		kind, name := cutWord(rest)
		name = NormalizeLabel(name)
		if name == "" {
			p.errorf(ErrorTypeSyntax, header, "define %s needs a name", kind)
			continue
		}
		loc := p.loc(header)

		switch kind {
		case "user":
			examples := p.quotedLines(body)
			if len(examples) == 0 {
				p.errorf(ErrorTypeStructural, header, "intent %q has no examples", name)
			}
			doc.Intents = append(doc.Intents, IntentDef{
				CanonicalIntent: domain.CanonicalIntent{Label: name, Examples: examples},
				Location:        loc,
			})
		case "bot":
			templates := p.quotedLines(body)
			if len(templates) == 0 {
				p.errorf(ErrorTypeStructural, header, "bot message %q has no templates", name)
			}
			doc.Messages = append(doc.Messages, MessageDef{Label: name, Templates: templates, Location: loc})
		case "flow":
			var steps []domain.Step
			if len(body) > 0 {
				var next int
				steps, next = p.block(body, 0)
				for ; next < len(body); next++ {
					p.errorf(ErrorTypeSyntax, body[next], "unexpected indentation")
				}
			}
			if len(steps) == 0 {
				p.errorf(ErrorTypeStructural, header, "flow %q has no steps", name)
			}
			doc.Flows = append(doc.Flows, FlowDef{
				Flow:     domain.Flow{Name: name, Steps: steps, File: file, Line: header.no},
				Location: loc,
			})
		default:
			p.suggest(ErrorTypeSyntax, header, Suggest(kind, DefineKinds), "unknown define kind %q", kind)
		}
	}
	return doc, p.errs
}

type parser struct {
	file string
	errs *ErrorList
}

func (p *parser) loc(l line) Location {
	return Location{File: p.file, Line: l.no, Column: l.indent + 1}
}

func (p *parser) errorf(t ErrorType, l line, format string, args ...any) {
	p.errs.AddError(t, p.loc(l), format, args...)
}

func (p *parser) suggest(t ErrorType, l line, suggestion, format string, args ...any) {
	p.errs.AddErrorWithSuggestion(t, p.loc(l), suggestion, format, args...)
}

// split drops comments and blank lines and measures indentation.
func (p *parser) split(src string) []line {
	var out []line
	for n, raw := range strings.Split(src, "\n") {
		raw = strings.TrimRight(stripComment(raw), " \t\r")
		text := strings.TrimLeft(raw, " \t")
		if text == "" {
			continue
		}
		l := line{no: n + 1, indent: len(raw) - len(text), text: text}
		if strings.Contains(raw[:l.indent], "\t") {
			p.suggest(ErrorTypeSyntax, l, "indent with spaces", "tab used for indentation")
		}
		out = append(out, l)
	}
	return out
}

func stripComment(s string) string {
	inQuote, escaped := false, false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == '#' && !inQuote:
			return s[:i]
		}
	}
	return s
}

func (p *parser) quotedLines(body []line) []string {
	var out []string
	for _, l := range body {
		s, ok := unquote(l.text)
		if !ok {
			p.suggest(ErrorTypeSyntax, l, `wrap the text in double quotes, e.g. "hello"`, "expected a quoted string, got %s", l.text)
			continue
		}
		if strings.TrimSpace(s) == "" {
			p.errorf(ErrorTypeSyntax, l, "empty string")
			continue
		}
		out = append(out, s)
	}
	return out
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], true
	}
	if len(s) < 2 || s[0] != '"' {
		return "", false
	}
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", false
	}
	return v, true
}

// block parses statements sharing the indentation of body[i]. It stops at the
// first line indented less than that and returns the index of that line.
func (p *parser) block(body []line, i int) ([]domain.Step, int) {
	base := body[i].indent
	var steps []domain.Step
	for i < len(body) {
		l := body[i]
		if l.indent < base {
			break
		}
		if l.indent > base {
			p.errorf(ErrorTypeSyntax, l, "unexpected indentation")
			i++
			continue
		}

		kw, rest := cutWord(l.text)
		switch kw {
		case "if":
			step := domain.Step{Kind: domain.StepBranch, Line: l.no}
			if cond, err := ParseCondition(rest); err != nil {
				p.errorf(ErrorTypeSyntax, l, "invalid condition: %v", err)
			} else {
				step.Condition = cond
			}
			i++
			if i < len(body) && body[i].indent > base {
				step.Then, i = p.block(body, i)
			} else {
				p.errorf(ErrorTypeStructural, l, "if has no body")
			}
			if i < len(body) && body[i].indent == base && body[i].text == "else" {
				elseLine := body[i]
				i++
				if i < len(body) && body[i].indent > base {
					step.Else, i = p.block(body, i)
				} else {
					p.errorf(ErrorTypeStructural, elseLine, "else has no body")
				}
			}
			steps = append(steps, step)
		case "else":
			p.errorf(ErrorTypeStructural, l, "else without a matching if")
			i++
			for i < len(body) && body[i].indent > base {
				i++
			}
		default:
			if step, ok := p.statement(l, kw, rest); ok {
				steps = append(steps, step)
			}
			i++
		}
	}
	return steps, i
}

func (p *parser) statement(l line, kw, rest string) (domain.Step, bool) {
	rest = strings.TrimSpace(rest)
	step := domain.Step{Line: l.no}

	switch kw {
	case "user", "bot":
		label := NormalizeLabel(rest)
		if label == "" {
			p.errorf(ErrorTypeSyntax, l, "%s needs a label or ...", kw)
			return step, false
		}
		if kw == "user" {
			step.Kind, step.Intent = domain.StepExpectUser, label
		} else {
			step.Kind, step.Message = domain.StepBotMessage, label
		}
	case "check":
		if rest == "" || strings.ContainsAny(rest, " \t") {
			p.errorf(ErrorTypeSyntax, l, "check needs exactly one guard name")
			return step, false
		}
		step.Kind, step.Guard = domain.StepGuardCheck, rest
	case "execute":
		if rest == "" || strings.ContainsAny(rest, " \t") {
			p.errorf(ErrorTypeSyntax, l, "execute needs exactly one action name")
			return step, false
		}
		step.Kind, step.Action = domain.StepAction, rest
	case "think":
		text := rest
		if s, ok := unquote(rest); ok {
			text = s
		}
		if text == "" {
			p.errorf(ErrorTypeSyntax, l, "think needs a text")
			return step, false
		}
		step.Kind, step.Text = domain.StepThink, text
	case "stop":
		if rest != "" {
			p.errorf(ErrorTypeSyntax, l, "stop takes no arguments")
			return step, false
		}
		step.Kind = domain.StepStop
	default:
		if m := assignRe.FindStringSubmatch(l.text); m != nil {
			step.Kind, step.SaveAs, step.Action = domain.StepAction, m[1], m[2]
			return step, true
		}
		if strings.HasPrefix(l.text, "$") {
			p.suggest(ErrorTypeSyntax, l, "$name = execute <action>", "invalid assignment %q", l.text)
			return step, false
		}
		p.suggest(ErrorTypeSyntax, l, Suggest(kw, Keywords), "unknown statement %q", kw)
		return step, false
	}
	return step, true
}

func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
