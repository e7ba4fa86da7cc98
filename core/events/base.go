// Package events defines the typed pipeline event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_reply.*
//   - transport.*
//   - session.*
//
// Semantics used across the package:
//
//   - Started/Ended: lifecycle boundary for a speech or playback span.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current utterance.
package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
