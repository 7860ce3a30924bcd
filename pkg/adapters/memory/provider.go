package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/railyard/internal/vector"
	"github.com/aretw0/railyard/pkg/domain"
)

// DefaultDimensions is the vector size produced by the offline embedder.
const DefaultDimensions = 512

// NoAnswer is returned by the offline completer when the context holds nothing relevant.
const NoAnswer = "I don't have that information in the provided context."

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "be": {}, "to": {}, "of": {},
	"and": {}, "or": {}, "in": {}, "on": {}, "for": {}, "it": {}, "me": {}, "my": {}, "you": {},
	"your": {}, "i": {}, "do": {}, "does": {}, "can": {}, "what": {}, "s": {}, "this": {}, "that": {},
	"with": {}, "at": {}, "by": {}, "from": {}, "as": {}, "please": {},
}

// Provider is an offline ports.Provider. Embeddings are hashed bags of words and
// character trigrams; completions are extracted from the supplied context.
// It needs no network access and is deterministic, which makes it suitable for
// tests, demos and air-gapped runs.
type Provider struct {
	dims int
}

// NewProvider creates an offline provider. A non-positive dims selects DefaultDimensions.
func NewProvider(dims int) *Provider {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Provider{dims: dims}
}

// Embed implements ports.Embedder.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, p.dims)
	for _, tok := range Tokenize(text) {
		v[p.bucket(tok)] += 1
		padded := "^" + tok + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			v[p.bucket("#"+string(runes[i:i+3]))] += 0.25
		}
	}
	return vector.Normalize(v), nil
}

// EmbedBatch implements ports.BatchEmbedder.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *Provider) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(p.dims))
}

// Complete implements ports.Completer by returning the context sentences that
// share the most words with the last user turn.
func (p *Provider) Complete(ctx context.Context, prompt domain.Prompt, params domain.CompletionParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var question string
	for i := len(prompt.Turns) - 1; i >= 0; i-- {
		if prompt.Turns[i].Role == domain.RoleUser {
			question = prompt.Turns[i].Text
			break
		}
	}

	want := make(map[string]struct{})
	for _, tok := range Tokenize(question) {
		want[tok] = struct{}{}
	}

	type scored struct {
		text  string
		score int
		pos   int
	}
	var candidates []scored
	for i, sentence := range sentences(contextOf(prompt.System)) {
		n := 0
		for _, tok := range Tokenize(sentence) {
			if _, ok := want[tok]; ok {
				n++
			}
		}
		if n > 0 {
			candidates = append(candidates, scored{text: sentence, score: n, pos: i})
		}
	}
	if len(candidates) == 0 {
		return NoAnswer, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].pos < candidates[j].pos })

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.text
	}
	answer := strings.Join(parts, " ")
	if params.MaxTokens > 0 {
		// Roughly four characters per token.
		if limit := params.MaxTokens * 4; len(answer) > limit {
			answer = strings.TrimSpace(answer[:limit])
		}
	}
	return answer, nil
}

// contextOf extracts the retrieved context from a system message of the form
// "Context: ...\n\nRespond based on ...".
func contextOf(system string) string {
	_, after, ok := strings.Cut(system, "Context:")
	if !ok {
		return ""
	}
	if before, _, found := strings.Cut(after, "\n\nRespond based on"); found {
		return before
	}
	return after
}

func sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			flush()
		}
	}
	flush()
	return out
}

// Tokenize lowercases text and splits it into words, dropping common stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}
