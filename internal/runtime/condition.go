package runtime

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/aretw0/railyard/pkg/domain"
)

// evaluate tests a branch condition against the session context. A missing
// variable is falsy, unequal to any literal and fails every ordering.
func evaluate(c *domain.Condition, vars map[string]any) bool {
	if c == nil {
		return false
	}
	v, ok := vars[c.Var]
	var res bool
	switch c.Op {
	case "":
		res = ok && truthy(v)
	case "==":
		res = ok && equal(v, c.Value)
	case "!=":
		res = !ok || !equal(v, c.Value)
	default:
		a, okA := toFloat(v, true)
		b, okB := toFloat(c.Value, true)
		if ok && okA && okB {
			switch c.Op {
			case ">":
				res = a > b
			case ">=":
				res = a >= b
			case "<":
				res = a < b
			case "<=":
				res = a <= b
			}
		}
	}
	if c.Negate {
		return !res
	}
	return res
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v, false); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func equal(a, b any) bool {
	fa, okA := toFloat(a, false)
	fb, okB := toFloat(b, false)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// toFloat converts numeric values. Numeric strings are accepted only when parseStrings is set.
func toFloat(v any, parseStrings bool) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		if parseStrings {
			f, err := strconv.ParseFloat(x, 64)
			return f, err == nil
		}
	}
	return 0, false
}
