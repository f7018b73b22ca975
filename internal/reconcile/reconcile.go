// Package reconcile keeps a persisted one-to-many child collection in line with
// an incoming partial list. Every child type plugs in through a Capabilities
// record instead of sharing save logic by inheritance.
package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// AbsentPolicy decides what an absent incoming list does to the collection
type AbsentPolicy int

const (
	// KeepAll leaves the collection untouched when the list is absent
	KeepAll AbsentPolicy = iota
	// DeleteAll treats an absent list like an empty one
	DeleteAll
)

// Options configures reconciliation for one child type
type Options struct {
	// Name of the child type, used in errors
	Name string
	// StrictIdentity rejects references to ids that are not persisted.
	// It only applies when the capabilities define Update.
	StrictIdentity bool
	OnAbsent       AbsentPolicy
}

// Capabilities is what a child type supplies to be reconciled. ID is the child
// identity, P the incoming payload item and C the child built from it.
type Capabilities[ID comparable, P any, C any] struct {
	// ExtractID returns the identity carried by an item, if any
	ExtractID func(P) (ID, bool)
	// BuildNew builds a child bound to the parent. It must not touch storage.
	BuildNew func(P) (C, error)
	// Update applies the item's fields to an existing child. Optional.
	Update func(ctx context.Context, id ID, item P) error
	// InsertBatch stores new children and returns their ids in order
	InsertBatch func(ctx context.Context, children []C) ([]ID, error)
	// DeleteByIDs removes children
	DeleteByIDs func(ctx context.Context, ids []ID) error
}

// Log records what one reconciliation did
type Log[ID comparable] struct {
	Kept    []ID `json:"kept"`
	Updated []ID `json:"updated"`
	Created []ID `json:"created"`
	Deleted []ID `json:"deleted"`
	// Ignored holds references to ids that were not persisted
	Ignored []ID `json:"ignored,omitempty"`
}

// Final returns the resulting identity set: kept ids followed by created ids
func (l *Log[ID]) Final() []ID {
	out := make([]ID, 0, len(l.Kept)+len(l.Created))
	out = append(out, l.Kept...)
	return append(out, l.Created...)
}

// UnknownIdentityError is returned when a referenced id is not in the persisted
// collection and the child type requires update in place
type UnknownIdentityError struct {
	Child string
	ID    any
}

func (e *UnknownIdentityError) Error() string {
	return fmt.Sprintf("%s %v does not exist", e.Child, e.ID)
}

// ErrMissingCapability is returned when a required capability is nil
var ErrMissingCapability = errors.New("missing required capability")

// Reconcile brings the collection identified by persisted in line with incoming.
//
// Referenced items are kept (and updated when caps.Update is set), every
// persisted id that was not referenced is deleted, and items without an id are
// built and inserted as one batch. All validation and BuildNew calls happen before the first
// mutation. Callers must still run Reconcile inside a transaction so that a
// storage failure part way through rolls back the earlier steps.
//
// Items without an id are created on every call, so repeating a call is only
// idempotent when every item carries its id.
//
// An id referenced more than once is updated once, from its first occurrence.
func Reconcile[ID comparable, P any, C any](ctx context.Context, persisted []ID, incoming Incoming[P], caps Capabilities[ID, P, C], opts Options) (*Log[ID], error) {
	if caps.ExtractID == nil || caps.BuildNew == nil || caps.InsertBatch == nil || caps.DeleteByIDs == nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, ErrMissingCapability)
	}

	log := &Log[ID]{}

	if incoming.State() == StateAbsent && opts.OnAbsent == KeepAll {
		log.Kept = append(log.Kept, persisted...)
		return log, nil
	}

	known := make(map[ID]struct{}, len(persisted))
	for _, id := range persisted {
		known[id] = struct{}{}
	}

	type reference struct {
		id   ID
		item P
	}

	var refs []reference
	var fresh []P
	keep := make(map[ID]struct{})

	for _, item := range incoming.Items() {
		id, ok := caps.ExtractID(item)
		if !ok {
			fresh = append(fresh, item)
			continue
		}

		if _, exists := known[id]; !exists {
			if opts.StrictIdentity && caps.Update != nil {
				return nil, &UnknownIdentityError{Child: opts.Name, ID: id}
			}
			log.Ignored = append(log.Ignored, id)
			continue
		}

		if _, dup := keep[id]; !dup {
			keep[id] = struct{}{}
			log.Kept = append(log.Kept, id)
			refs = append(refs, reference{id: id, item: item})
		}
	}

	children := make([]C, 0, len(fresh))
	for i, item := range fresh {
		child, err := caps.BuildNew(item)
		if err != nil {
			return nil, fmt.Errorf("%s: building new item %d: %w", opts.Name, i, err)
		}
		children = append(children, child)
	}

	// Nothing has been written up to this point

	if caps.Update != nil {
		for _, r := range refs {
			if err := caps.Update(ctx, r.id, r.item); err != nil {
				return nil, fmt.Errorf("%s: updating %v: %w", opts.Name, r.id, err)
			}
			log.Updated = append(log.Updated, r.id)
		}
	}

	var stale []ID
	for _, id := range persisted {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := caps.DeleteByIDs(ctx, stale); err != nil {
			return nil, fmt.Errorf("%s: deleting %d item(s): %w", opts.Name, len(stale), err)
		}
		log.Deleted = stale
	}

	// Stale rows go first so a replacement may reuse a unique key
	if len(children) > 0 {
		ids, err := caps.InsertBatch(ctx, children)
		if err != nil {
			return nil, fmt.Errorf("%s: inserting %d item(s): %w", opts.Name, len(children), err)
		}
		log.Created = ids
	}

	return log, nil
}
