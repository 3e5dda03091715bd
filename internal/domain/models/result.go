package models

import "encoding/json"

// ValueKind classifies a result cell.
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindNumber
	KindPercent
	KindBool
	KindText
	KindSentinel
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindPercent:
		return "percent"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindSentinel:
		return "sentinel"
	default:
		return "missing"
	}
}

// Value is one typed cell of a result row. Raw keeps the decoded backend
// value so rows serialize back unchanged.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Text string
	Raw  interface{}
}

// MarshalJSON writes the backend's original value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw)
}

// Numeric reports whether v orders by magnitude.
func (v Value) Numeric() bool {
	return v.Kind == KindNumber || v.Kind == KindPercent
}

// ResultRow is one normalized screening result. Keys are canonical column
// names where a case-insensitive match exists, the backend's key otherwise.
type ResultRow struct {
	Stock          string
	Recommendation string
	Converged      bool
	Error          string
	Values         map[string]Value
}

// Get returns the cell for key, or a missing value.
func (r ResultRow) Get(key string) Value {
	if v, ok := r.Values[key]; ok {
		return v
	}
	return Value{Kind: KindMissing}
}

// MarshalJSON writes the row as a flat object keyed by column.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values)
}
