package compiler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/aretw0/railyard/internal/config"
	"github.com/aretw0/railyard/pkg/domain"
)

// Extension is the file extension of rail files.
const Extension = ".co"

// Source is the raw content of one rail file.
type Source struct {
	Name string
	Data []byte
}

// ReadSources collects every rail file under root in fsys, in lexical order.
func ReadSources(fsys fs.FS, root string) ([]Source, error) {
	var sources []Source
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != Extension {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Name: p, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// Load reads config.yml and every rail file of a directory and compiles them.
// Extra sources are compiled after the directory's files. All problems are
// reported together in an *ErrorList.
func Load(dir string, extra ...Source) (*domain.Rails, *config.Config, error) {
	errs := NewErrorList()

	cfg, err := config.Load(dir)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				errs.AddError(ErrorTypeConfig, Location{File: "config.yml"}, "%s", fe.Error())
			}
		} else {
			errs.AddError(ErrorTypeConfig, Location{File: dir}, "%v", err)
		}
		cfg = config.Default()
	}

	sources, err := ReadSources(os.DirFS(dir), ".")
	if err != nil {
		errs.AddError(ErrorTypeIO, Location{File: dir}, "failed to read rails: %v", err)
		return nil, cfg, errs
	}
	sources = append(sources, extra...)
	if len(sources) == 0 {
		errs.AddErrorWithSuggestion(ErrorTypeIO, Location{File: dir}, "add at least one "+Extension+" file", "no rail files found")
	}

	rails, err := Compile(sources, cfg)
	var cerrs *ErrorList
	if errors.As(err, &cerrs) {
		errs.Merge(cerrs)
	}
	if rails != nil {
		rails.Source = dir
	}
	return rails, cfg, errs.ToError()
}

// Compile parses the sources and assembles the rail set, applying cfg
// (config.Default() when nil). The built-in fallback flow is always appended last.
// The returned rails are usable for inspection even when an error is returned.
func Compile(sources []Source, cfg *config.Config) (*domain.Rails, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	errs := NewErrorList()

	rails := &domain.Rails{
		Messages:           make(map[string][]string),
		Guards:             make(map[string]domain.GuardSpec),
		Checkpoints:        cfg.Checkpoints(),
		RejectMessage:      cfg.Messages.Reject,
		UnavailableMessage: cfg.Messages.Unavailable,
		Instructions:       cfg.Instructions,
		Matcher: domain.MatcherParams{
			Threshold: cfg.Matcher.Threshold,
			TopK:      cfg.Matcher.TopK,
		},
		Generation: domain.CompletionParams{
			Model:       cfg.Models.CompletionModel,
			Temperature: cfg.Models.Temperature,
			MaxTokens:   cfg.Models.MaxTokens,
		},
	}
	for _, g := range cfg.Guards {
		rails.Guards[g.Name] = g
	}

	intentIdx := make(map[string]int)
	flowLoc := make(map[string]Location)

	for _, src := range sources {
		doc, perrs := Parse(src.Name, src.Data)
		errs.Merge(perrs)

		for _, in := range doc.Intents {
			if in.Label == domain.UnknownIntent || in.Label == domain.Wildcard {
				errs.AddError(ErrorTypeStructural, in.Location, "intent label %q is reserved", in.Label)
				continue
			}
			if i, ok := intentIdx[in.Label]; ok {
				for _, ex := range in.Examples {
					if !slices.Contains(rails.Intents[i].Examples, ex) {
						rails.Intents[i].Examples = append(rails.Intents[i].Examples, ex)
					}
				}
				continue
			}
			intentIdx[in.Label] = len(rails.Intents)
			rails.Intents = append(rails.Intents, in.CanonicalIntent)
		}

		for _, m := range doc.Messages {
			if m.Label == domain.Wildcard {
				errs.AddError(ErrorTypeStructural, m.Location, "bot message label %q is reserved", m.Label)
				continue
			}
			rails.Messages[m.Label] = append(rails.Messages[m.Label], m.Templates...)
		}

		for _, f := range doc.Flows {
			if f.Name == domain.FallbackFlow {
				errs.AddErrorWithSuggestion(ErrorTypeStructural, f.Location,
					fmt.Sprintf("customise its reply with 'define bot %s'", domain.FallbackMessage),
					"flow %q is built in and cannot be redefined", f.Name)
				continue
			}
			if prev, dup := flowLoc[f.Name]; dup {
				errs.AddError(ErrorTypeStructural, f.Location, "flow %q already defined at %s", f.Name, prev)
				continue
			}
			flowLoc[f.Name] = f.Location
			if len(f.Steps) > 0 && f.Steps[0].Kind != domain.StepExpectUser {
				errs.AddErrorWithSuggestion(ErrorTypeStructural, f.Location,
					"begin the flow with 'user <intent>' or 'user ...'",
					"flow %q must start with a user step", f.Name)
			}
			rails.Flows = append(rails.Flows, f.Flow)
		}
	}

	rails.Flows = append(rails.Flows, domain.FallbackFlowDef())
	return rails, errs.ToError()
}
