package runtime

import (
	"fmt"
	"regexp"

	"github.com/aretw0/railyard/pkg/domain"
)

var varRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// render picks the template for label, rotating by the ordinal the message will
// take in the history, and interpolates session variables. When label has no
// templates, fallback is rendered instead.
func (e *Engine) render(sess *domain.Session, label, fallback string) string {
	tmpls := e.rails.Templates(label)
	var vars map[string]any
	ordinal := 0
	if sess != nil {
		vars = sess.Context
		ordinal = len(sess.History)
	}
	if len(tmpls) == 0 {
		return interpolate(fallback, vars)
	}
	return interpolate(tmpls[ordinal%len(tmpls)], vars)
}

// interpolate replaces $name with the value of name. Unknown variables are left as written.
func interpolate(tmpl string, vars map[string]any) string {
	return varRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		v, ok := vars[m[1:]]
		if !ok || v == nil {
			return m
		}
		return fmt.Sprint(v)
	})
}
