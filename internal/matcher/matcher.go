// Package matcher resolves user utterances to canonical intents by embedding
// similarity against the example utterances of each intent.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/railyard/internal/logging"
	"github.com/aretw0/railyard/internal/vector"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Defaults used when MatcherParams leaves a field unset.
const (
	DefaultTopK        = 5
	DefaultThreshold   = 0.75
	DefaultConcurrency = 4
	DefaultBatchSize   = 32
)

// Match is the outcome of matching one utterance.
type Match struct {
	Intent string
	// Score is the highest similarity among the examples of Intent
	// (or the best score overall when Intent is unknown).
	Score float64
	// Votes is the number of top-K neighbours owned by Intent.
	Votes int
	// Exact is set when the utterance equals an example and no embedding was computed.
	Exact bool
}

// Unknown reports whether no intent cleared the threshold.
func (m Match) Unknown() bool {
	return m.Intent == domain.UnknownIntent
}

type entry struct {
	intent  int
	example string
	vec     []float32
}

// Matcher is an immutable index of embedded examples. Safe for concurrent use.
type Matcher struct {
	embedder  ports.Embedder
	labels    []string
	entries   []entry
	exact     map[string]int
	threshold float64
	topK      int
	logger    *slog.Logger
}

type options struct {
	concurrency int
	batchSize   int
	logger      *slog.Logger
}

// Option configures index construction.
type Option func(*options)

// WithConcurrency bounds the number of embedding calls in flight while building.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithBatchSize sets how many examples are sent per batch to a ports.BatchEmbedder.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithLogger configures a logger for the Matcher.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New embeds every example of every intent and returns the resulting index.
// Embedding failures are wrapped with domain.ErrServiceUnavailable.
func New(ctx context.Context, embedder ports.Embedder, intents []domain.CanonicalIntent, params domain.MatcherParams, opts ...Option) (*Matcher, error) {
	o := options{concurrency: DefaultConcurrency, batchSize: DefaultBatchSize, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Matcher{
		embedder:  embedder,
		exact:     make(map[string]int),
		threshold: params.Threshold,
		topK:      params.TopK,
		logger:    o.logger.With("component", "matcher"),
	}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	if m.topK <= 0 {
		m.topK = DefaultTopK
	}

	for i, in := range intents {
		m.labels = append(m.labels, in.Label)
		for _, ex := range in.Examples {
			m.entries = append(m.entries, entry{intent: i, example: ex})
			key := normalize(ex)
			if _, taken := m.exact[key]; !taken {
				m.exact[key] = i
			}
		}
	}

	if err := m.embedAll(ctx, o); err != nil {
		return nil, err
	}
	m.logger.Debug("matcher index built", "intents", len(m.labels), "examples", len(m.entries))
	return m, nil
}

func (m *Matcher) embedAll(ctx context.Context, o options) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.concurrency))

	batcher, canBatch := m.embedder.(ports.BatchEmbedder)
	size := max(1, o.batchSize)
	for start := 0; start < len(m.entries); start += size {
		batch := m.entries[start:min(start+size, len(m.entries))]
		g.Go(func() error {
			if canBatch {
				texts := make([]string, len(batch))
				for i := range batch {
					texts[i] = batch[i].example
				}
				vecs, err := batcher.EmbedBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("%w: embedding intent examples: %w", domain.ErrServiceUnavailable, err)
				}
				if len(vecs) != len(batch) {
					return fmt.Errorf("%w: embedder returned %d vectors for %d examples", domain.ErrServiceUnavailable, len(vecs), len(batch))
				}
				for i := range batch {
					batch[i].vec = vecs[i]
				}
				return nil
			}
			for i := range batch {
				v, err := m.embedder.Embed(gctx, batch[i].example)
				if err != nil {
					return fmt.Errorf("%w: embedding example %q: %w", domain.ErrServiceUnavailable, batch[i].example, err)
				}
				batch[i].vec = v
			}
			return nil
		})
	}
	return g.Wait()
}

// Match returns the canonical intent of text, or domain.UnknownIntent when no
// example clears the threshold. A score equal to the threshold clears it.
// An error is returned only when the embedder fails.
func (m *Matcher) Match(ctx context.Context, text string) (Match, error) {
	if i, ok := m.exact[normalize(text)]; ok {
		return Match{Intent: m.labels[i], Score: 1, Votes: 1, Exact: true}, nil
	}
	if len(m.entries) == 0 {
		return Match{Intent: domain.UnknownIntent}, nil
	}

	v, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return Match{}, fmt.Errorf("%w: embedding utterance: %w", domain.ErrServiceUnavailable, err)
	}

	type scored struct {
		intent int
		score  float64
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		scores[i] = scored{intent: e.intent, score: vector.Cosine(v, e.vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if scores[0].score < m.threshold {
		return Match{Intent: domain.UnknownIntent, Score: scores[0].score}, nil
	}

	votes := make(map[int]int)
	best := make(map[int]float64)
	for _, s := range scores[:min(m.topK, len(scores))] {
		if s.score < m.threshold {
			break
		}
		votes[s.intent]++
		if _, seen := best[s.intent]; !seen {
			best[s.intent] = s.score
		}
	}

	winner := -1
	for intent := range votes {
		if winner < 0 || beats(intent, winner, votes, best) {
			winner = intent
		}
	}
	return Match{Intent: m.labels[winner], Score: best[winner], Votes: votes[winner]}, nil
}

// beats orders candidates by votes, then by best single score, then by declaration order.
func beats(a, b int, votes map[int]int, best map[int]float64) bool {
	if votes[a] != votes[b] {
		return votes[a] > votes[b]
	}
	if best[a] != best[b] {
		return best[a] > best[b]
	}
	return a < b
}

// Intents returns the indexed intent labels in declaration order.
func (m *Matcher) Intents() []string {
	return m.labels
}

// Threshold returns the minimum similarity an example must reach.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRight(s, ".!?")
}
