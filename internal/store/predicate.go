package store

import "strings"

// Predicate is the abstract-but-composable select filter spec.md §4.1
// describes as "a callback that receives a mutable select statement and
// returns it plus parameters" — here expressed as a small value type
// instead of a callback, which is the idiomatic Go shape for the same
// composability.
type Predicate struct {
	Where string
	Args  []any
}

// And combines predicates with SQL AND, renumbering is left to the caller
// (table.go rewrites placeholders per-dialect at execution time).
func And(preds ...Predicate) Predicate {
	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		if p.Where == "" {
			continue
		}
		parts = append(parts, "("+p.Where+")")
		args = append(args, p.Args...)
	}
	return Predicate{Where: strings.Join(parts, " AND "), Args: args}
}

// EqDsmall filters rows whose dsmall column equals v.
func EqDsmall(v string) Predicate {
	return Predicate{Where: "dsmall = ?", Args: []any{v}}
}

// DsmallIn filters rows whose dsmall column is one of values.
func DsmallIn(values []string) Predicate {
	if len(values) == 0 {
		return Predicate{Where: "1 = 0"}
	}
	placeholders := strings.Repeat("?,", len(values))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Predicate{Where: "dsmall IN (" + placeholders + ")", Args: args}
}

// MetaContains filters rows whose dmedium JSON blob contains the literal
// substring needle — a deliberately simple LIKE-based filter; richer JSON
// predicate pushdown is opt-in per spec.md §6 and not implemented here.
func MetaContains(needle string) Predicate {
	return Predicate{Where: "dmedium LIKE ?", Args: []any{"%" + needle + "%"}}
}
