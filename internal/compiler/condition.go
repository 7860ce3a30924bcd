package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
)

var conditionRe = regexp.MustCompile(`^(not\s+)?\$([A-Za-z_][A-Za-z0-9_]*)\s*(?:(==|!=|>=|<=|>|<)\s*(.+))?$`)

// ParseCondition parses "[not] $var [op literal]". Literals are quoted strings,
// numbers, true/false or bare words (taken as strings).
func ParseCondition(expr string) (*domain.Condition, error) {
	expr = strings.TrimSpace(expr)
	m := conditionRe.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("expected '[not] $var [op value]', got %q", expr)
	}
	cond := &domain.Condition{
		Var:    m[2],
		Negate: m[1] != "",
		Op:     m[3],
		Source: expr,
	}
	if cond.Op != "" {
		cond.Value = parseLiteral(strings.TrimSpace(m[4]))
		if _, isNum := cond.Value.(float64); !isNum && isOrdering(cond.Op) {
			return nil, fmt.Errorf("operator %s needs a number, got %q", cond.Op, m[4])
		}
	}
	return cond, nil
}

func isOrdering(op string) bool {
	return op == ">" || op == ">=" || op == "<" || op == "<="
}

func parseLiteral(s string) any {
	if v, ok := unquote(s); ok {
		return v
	}
	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
