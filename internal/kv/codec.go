package kv

import (
	"bytes"
	"encoding/json"
)

// Outcome records how a stored value was decoded.
type Outcome int

const (
	// OutcomeOK means the stored value decoded cleanly.
	OutcomeOK Outcome = iota
	// OutcomeMissing means nothing was stored; the default was used.
	OutcomeMissing
	// OutcomeDefaulted means the stored value was malformed; the default was used.
	OutcomeDefaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissing:
		return "missing"
	case OutcomeDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// Decoded is a value read from the store together with how it was obtained.
// Decoding never fails: corrupted data degrades to the default.
type Decoded[T any] struct {
	Value   T
	Outcome Outcome
}

// Decode unmarshals raw into a T, falling back to def when raw is absent,
// JSON null, or not valid JSON for T.
func Decode[T any](raw []byte, found bool, def T) Decoded[T] {
	if !found {
		return Decoded[T]{Value: def, Outcome: OutcomeMissing}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Decoded[T]{Value: def, Outcome: OutcomeDefaulted}
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return Decoded[T]{Value: def, Outcome: OutcomeDefaulted}
	}
	return Decoded[T]{Value: v, Outcome: OutcomeOK}
}

// Encode marshals v for storage.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
