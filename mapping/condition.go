package mapping

import (
	"fmt"

	"github.com/flowenginer/meta-hub/jsonval"
)

// evaluateCondition resolves cond.Path against payload and checks it against
// cond.Op. An unrecognized op is a structural mapping error.
func evaluateCondition(cond *Condition, payload any) (bool, error) {
	resolved := jsonval.Get(payload, cond.Path)
	switch cond.Op {
	case ConditionPresent:
		return !jsonval.IsAbsent(resolved), nil
	case ConditionNonEmpty:
		if jsonval.IsAbsent(resolved) || resolved == nil {
			return false, nil
		}
		switch t := resolved.(type) {
		case string:
			return t != "", nil
		case []any:
			return len(t) > 0, nil
		case map[string]any:
			return len(t) > 0, nil
		default:
			return true, nil
		}
	case ConditionEquals:
		if jsonval.IsAbsent(resolved) {
			return false, nil
		}
		return valuesEqual(resolved, cond.Value), nil
	default:
		return false, fmt.Errorf("mapping: unrecognized condition op %q", cond.Op)
	}
}

func valuesEqual(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af == bf
	}
	return a == b
}
