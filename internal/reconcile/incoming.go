package reconcile

import (
	"bytes"
	"encoding/json"
)

// State says whether a child list was sent at all, and if so whether it had items
type State int

const (
	StateAbsent State = iota
	StateEmpty
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulated:
		return "populated"
	default:
		return "absent"
	}
}

// Incoming is a child list taken from a payload. The zero value is an absent
// list, which is not the same thing as an empty one: what absent means is
// decided per child type by Options.OnAbsent.
type Incoming[P any] struct {
	items   []P
	present bool
}

// Present wraps items as a list that was sent. Calling it with no items gives an
// empty list.
func Present[P any](items ...P) Incoming[P] {
	if items == nil {
		items = []P{}
	}
	return Incoming[P]{items: items, present: true}
}

// State reports whether the list is absent, empty or populated
func (in Incoming[P]) State() State {
	switch {
	case !in.present:
		return StateAbsent
	case len(in.items) == 0:
		return StateEmpty
	default:
		return StatePopulated
	}
}

// Items returns the list contents; nil when absent
func (in Incoming[P]) Items() []P {
	return in.items
}

// Filter returns a list in the same presence state holding only the items keep accepts
func (in Incoming[P]) Filter(keep func(P) bool) Incoming[P] {
	if !in.present {
		return in
	}
	out := make([]P, 0, len(in.items))
	for _, item := range in.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return Incoming[P]{items: out, present: true}
}

// UnmarshalJSON decodes a JSON array. A JSON null is treated like a missing field.
func (in *Incoming[P]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*in = Incoming[P]{}
		return nil
	}

	var items []P
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*in = Present(items...)
	return nil
}

// MarshalJSON encodes an absent list as null
func (in Incoming[P]) MarshalJSON() ([]byte, error) {
	if !in.present {
		return []byte("null"), nil
	}
	return json.Marshal(in.items)
}
