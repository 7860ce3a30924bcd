package rails

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/microcosm-cc/bluemonday"
)

type blocklistParams struct {
	Words []string `mapstructure:"words"`
	// Mask replaces blocked words with asterisks instead of rejecting.
	Mask bool `mapstructure:"mask"`
}

type blocklist struct {
	re   *regexp.Regexp
	mask bool
}

func newBlocklist(spec domain.GuardSpec, _ Deps) (Guard, error) {
	var p blocklistParams
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	if len(p.Words) == 0 {
		return nil, fmt.Errorf("guard %q: blocklist needs at least one word", spec.Name)
	}
	quoted := make([]string, 0, len(p.Words))
	for _, w := range p.Words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("guard %q: %w", spec.Name, err)
	}
	return &blocklist{re: re, mask: p.Mask}, nil
}

func (g *blocklist) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	found := g.re.FindString(in.Text)
	if found == "" {
		return domain.Pass(), nil
	}
	if g.mask {
		return domain.Revise(g.re.ReplaceAllStringFunc(in.Text, func(s string) string {
			return strings.Repeat("*", utf8.RuneCountInString(s))
		})), nil
	}
	return domain.Reject(fmt.Sprintf("blocked term %q", found)), nil
}

type maxLengthParams struct {
	Max      int  `mapstructure:"max"`
	Truncate bool `mapstructure:"truncate"`
}

type maxLength struct {
	max      int
	truncate bool
}

const defaultMaxLength = 2000

func newMaxLength(spec domain.GuardSpec, _ Deps) (Guard, error) {
	p := maxLengthParams{Max: defaultMaxLength}
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	if p.Max <= 0 {
		return nil, fmt.Errorf("guard %q: max must be positive", spec.Name)
	}
	return &maxLength{max: p.Max, truncate: p.Truncate}, nil
}

func (g *maxLength) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	n := utf8.RuneCountInString(in.Text)
	if n <= g.max {
		return domain.Pass(), nil
	}
	if g.truncate {
		return domain.Revise(string([]rune(in.Text)[:g.max])), nil
	}
	return domain.Reject(fmt.Sprintf("length %d exceeds %d", n, g.max)), nil
}

// piiPatterns are applied in this order so card numbers are masked before
// their digit groups can be taken for phone numbers.
var piiPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"credit_card", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

type piiParams struct {
	Types []string `mapstructure:"types"`
	// Action is "mask" (default) or "reject".
	Action string `mapstructure:"action"`
}

type pii struct {
	types  map[string]bool
	reject bool
}

func newPII(spec domain.GuardSpec, _ Deps) (Guard, error) {
	p := piiParams{Action: "mask"}
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	g := &pii{types: make(map[string]bool)}
	switch p.Action {
	case "mask":
	case "reject":
		g.reject = true
	default:
		return nil, fmt.Errorf("guard %q: unknown pii action %q", spec.Name, p.Action)
	}
	known := make(map[string]bool, len(piiPatterns))
	for _, pat := range piiPatterns {
		known[pat.name] = true
	}
	if len(p.Types) == 0 {
		g.types = known
	}
	for _, t := range p.Types {
		if !known[t] {
			return nil, fmt.Errorf("guard %q: unknown pii type %q", spec.Name, t)
		}
		g.types[t] = true
	}
	return g, nil
}

func (g *pii) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	text := in.Text
	var found []string
	for _, pat := range piiPatterns {
		if !g.types[pat.name] || !pat.re.MatchString(text) {
			continue
		}
		found = append(found, pat.name)
		text = pat.re.ReplaceAllString(text, "["+strings.ToUpper(pat.name)+"]")
	}
	switch {
	case len(found) == 0:
		return domain.Pass(), nil
	case g.reject:
		return domain.Reject("contains " + strings.Join(found, ", ")), nil
	}
	return domain.Revise(text), nil
}

// DefaultJailbreakPatterns are matched case-insensitively as literal substrings.
var DefaultJailbreakPatterns = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard system prompt",
	"disregard your instructions",
	"you are now",
	"new instructions",
	"forget everything",
	"pretend you are",
	"developer mode",
}

type jailbreakParams struct {
	// Patterns are added to DefaultJailbreakPatterns.
	Patterns []string `mapstructure:"patterns"`
	// Replace drops the defaults and uses only Patterns.
	Replace bool `mapstructure:"replace"`
}

type jailbreak struct {
	phrases  []string
	patterns []*regexp.Regexp
}

func newJailbreak(spec domain.GuardSpec, _ Deps) (Guard, error) {
	var p jailbreakParams
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	list := p.Patterns
	if !p.Replace {
		list = append(append([]string{}, DefaultJailbreakPatterns...), p.Patterns...)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("guard %q: no jailbreak patterns", spec.Name)
	}
	g := &jailbreak{}
	for _, s := range list {
		g.phrases = append(g.phrases, s)
		g.patterns = append(g.patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(s)))
	}
	return g, nil
}

func (g *jailbreak) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	for i, re := range g.patterns {
		if re.MatchString(in.Text) {
			return domain.Reject(fmt.Sprintf("prompt injection pattern %q", g.phrases[i])), nil
		}
	}
	return domain.Pass(), nil
}

type sanitizeHTML struct {
	policy *bluemonday.Policy
}

func newSanitizeHTML(spec domain.GuardSpec, _ Deps) (Guard, error) {
	if err := decodeParams(spec, &struct{}{}); err != nil {
		return nil, err
	}
	return &sanitizeHTML{policy: bluemonday.StrictPolicy()}, nil
}

// Check strips markup. The policy output is unescaped so plain text such as
// apostrophes round-trips unchanged and a revised text passes on re-check.
func (g *sanitizeHTML) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	clean := html.UnescapeString(g.policy.Sanitize(in.Text))
	if clean == in.Text {
		return domain.Pass(), nil
	}
	if strings.TrimSpace(clean) == "" {
		return domain.Reject("only markup"), nil
	}
	return domain.Revise(clean), nil
}

type relevanceParams struct {
	MinScore float64 `mapstructure:"min_score"`
}

type relevance struct {
	min float64
}

const defaultMinRelevance = 0.5

func newRelevance(spec domain.GuardSpec, _ Deps) (Guard, error) {
	p := relevanceParams{MinScore: defaultMinRelevance}
	if err := decodeParams(spec, &p); err != nil {
		return nil, err
	}
	if p.MinScore < 0 || p.MinScore > 1 {
		return nil, fmt.Errorf("guard %q: min_score must be in [0,1]", spec.Name)
	}
	return &relevance{min: p.MinScore}, nil
}

// Check rejects when no retrieved chunk reaches the minimum score. Outside the
// retrieval checkpoint there are no chunks to judge and it passes.
func (g *relevance) Check(_ context.Context, in Input) (domain.GuardResult, error) {
	if in.Checkpoint != domain.CheckpointRetrieval {
		return domain.Pass(), nil
	}
	best := 0.0
	for _, c := range in.Chunks {
		best = max(best, c.Score)
	}
	if best < g.min {
		return domain.Reject(fmt.Sprintf("best chunk score %.2f below %.2f", best, g.min)), nil
	}
	return domain.Pass(), nil
}
