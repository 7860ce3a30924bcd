package knowledge_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/railyard/pkg/adapters/memory"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter(t *testing.T) {
	s, err := knowledge.NewSplitter(40, 10)
	require.NoError(t, err)

	doc := domain.Document{ID: "faq", Content: strings.Repeat("line of text here\n", 10)}
	chunks, err := s.Split(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 40)
		assert.Equal(t, "faq", c.DocumentID)
		assert.Equal(t, fmt.Sprintf("faq#%d", i), c.ID)
	}

	_, err = knowledge.NewSplitter(10, 10)
	assert.Error(t, err)
	_, err = knowledge.NewSplitter(0, 0)
	assert.Error(t, err)
}

func TestBase_RetrieveBeforeIngest(t *testing.T) {
	b, err := knowledge.New(memory.NewProvider(0), memory.NewIndex())
	require.NoError(t, err)

	_, err = b.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrNoKnowledge)
}

func TestBase_IngestAndRetrieve(t *testing.T) {
	b, err := knowledge.New(memory.NewProvider(0), memory.NewIndex(), knowledge.WithTopK(5), knowledge.WithBatchSize(1))
	require.NoError(t, err)
	ctx := context.Background()

	n, err := b.Load(ctx, memory.NewLoader(map[string]string{
		"hours":   "The office opens at 9am and closes at 5pm on weekdays.",
		"parking": "Parking is free for visitors in the north garage.",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunks, err := b.Retrieve(ctx, "when does the office open")
	require.NoError(t, err)
	require.Len(t, chunks, 2, "k is capped by the number of chunks")
	assert.Equal(t, "hours", chunks[0].DocumentID)
	assert.GreaterOrEqual(t, chunks[0].Score, chunks[1].Score)

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBase_ReingestReplacesStaleChunks(t *testing.T) {
	s, err := knowledge.NewSplitter(40, 10)
	require.NoError(t, err)
	b, err := knowledge.New(memory.NewProvider(0), memory.NewIndex(), knowledge.WithSplitter(s), knowledge.WithTopK(10))
	require.NoError(t, err)
	ctx := context.Background()

	n, err := b.Ingest(ctx, []domain.Document{
		{ID: "note", Content: strings.Repeat("the old wording of the note\n", 6)},
		{ID: "hours", Content: "We open at 9am."},
	})
	require.NoError(t, err)
	require.Greater(t, n, 2)

	n, err = b.Ingest(ctx, []domain.Document{{ID: "note", Content: "Short new note."}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only the new note chunk and the hours chunk remain")

	chunks, err := b.Retrieve(ctx, "old wording")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotContains(t, c.Text, "old wording")
	}

	t.Run("sync drops removed documents", func(t *testing.T) {
		_, err := b.Sync(ctx, memory.NewLoader(map[string]string{"hours": "We open at 10am."}))
		require.NoError(t, err)
		count, err := b.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		chunks, err := b.Retrieve(ctx, "note")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hours", chunks[0].DocumentID)
		assert.Equal(t, "We open at 10am.", chunks[0].Text)
	})
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestBase_EmbedderFailure(t *testing.T) {
	b, err := knowledge.New(failingEmbedder{}, memory.NewIndex())
	require.NoError(t, err)

	_, err = b.Ingest(context.Background(), []domain.Document{{ID: "d", Content: "text"}})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("b.txt", "plain text file")
	write("sub/a.md", "# Title\n\nmarkdown body")
	write("page.html", `<html><head><title>Hours</title><style>p{}</style></head>
<body><h1>Opening hours</h1><p>We open at <b>9am</b>.</p><script>alert(1)</script>
<ul><li>Mon-Fri</li><li>Sat closed</li></ul></body></html>`)
	write("image.png", "not text")
	write("empty.txt", "   ")

	docs, err := knowledge.NewFileLoader(dir).LoadDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, filepath.Join(dir, "b.txt"), docs[0].ID)
	assert.Equal(t, "plain text file", docs[0].Content)

	assert.Equal(t, "Opening hours\nWe open at 9am.\nMon-Fri\nSat closed", docs[1].Content)
	assert.Equal(t, "Hours", docs[1].Metadata["title"])

	assert.Contains(t, docs[2].Content, "markdown body")

	_, err = knowledge.NewFileLoader(filepath.Join(dir, "missing")).LoadDocuments(context.Background())
	assert.Error(t, err)
}

// minimalPDF renders a one-page PDF showing text in Helvetica.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestFileLoader_PDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hours.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("The branch opens at 9am."), 0o644))

	docs, err := knowledge.NewFileLoader(dir).LoadDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, path, docs[0].ID)
	assert.Contains(t, docs[0].Content, "The branch opens at 9am.")
	assert.Equal(t, path, docs[0].Metadata["source"])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644))
	_, err = knowledge.NewFileLoader(dir).LoadDocuments(context.Background())
	assert.Error(t, err)
}
