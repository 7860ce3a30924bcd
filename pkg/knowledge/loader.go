package knowledge

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/tmc/langchaingo/documentloaders"
)

// Extensions read by FileLoader. Anything else under a directory is skipped.
var (
	TextExtensions = []string{".txt", ".md", ".markdown"}
	HTMLExtensions = []string{".html", ".htm"}
	PDFExtensions  = []string{".pdf"}
)

// FileLoader reads documents from files and directories.
type FileLoader struct {
	paths []string
}

// NewFileLoader creates a loader over files and directories. Directories are walked recursively.
func NewFileLoader(paths ...string) *FileLoader {
	return &FileLoader{paths: paths}
}

// LoadDocuments reads every supported file, in lexical path order. Document IDs
// are the file paths.
func (l *FileLoader) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	var files []string
	for _, root := range l.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	docs := make([]domain.Document, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := loadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if strings.TrimSpace(doc.Content) != "" {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(TextExtensions, ext) || slices.Contains(HTMLExtensions, ext) || slices.Contains(PDFExtensions, ext)
}

func loadFile(ctx context.Context, path string) (domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, err
	}
	defer f.Close()

	meta := map[string]any{"source": path}
	var loader documentloaders.Loader
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case slices.Contains(HTMLExtensions, ext):
		text, title, err := htmlText(f)
		if err != nil {
			return domain.Document{}, err
		}
		if title != "" {
			meta["title"] = title
		}
		return domain.Document{ID: path, Content: text, Metadata: meta}, nil
	case slices.Contains(PDFExtensions, ext):
		info, err := f.Stat()
		if err != nil {
			return domain.Document{}, err
		}
		loader = documentloaders.NewPDF(f, info.Size())
	default:
		loader = documentloaders.NewText(f)
	}

	loaded, err := loader.Load(ctx)
	if err != nil {
		return domain.Document{}, err
	}
	if len(loaded) > 1 {
		meta["pages"] = len(loaded)
	}
	var sb strings.Builder
	for i, d := range loaded {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(d.PageContent)
	}
	return domain.Document{ID: path, Content: sb.String(), Metadata: meta}, nil
}

// htmlText extracts the readable text of an HTML page, one line per block.
func htmlText(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		if text := strings.Join(strings.Fields(doc.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), title, nil
}
