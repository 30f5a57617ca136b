package model

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/schema"
)

// Model is one row of a registered type. It tracks which attributes were
// written since it was loaded or last saved.
type Model struct {
	typ       *Type
	attrs     map[string]any
	dirty     map[string]struct{}
	isNew     bool
	deleted   bool
	relations map[string]any
}

// Type returns the type of the instance.
func (m *Model) Type() *Type { return m.typ }

// Get returns the value of the attribute name, or nil when it is unset.
func (m *Model) Get(name string) any { return m.attrs[name] }

// Set writes an attribute. Writing a value equal to the current one does
// not mark the attribute dirty.
func (m *Model) Set(name string, v any) error {
	cv, err := m.typ.check(name, v)
	if err != nil {
		return err
	}
	if old, ok := m.attrs[name]; ok && same(old, cv) {
		return nil
	}
	m.attrs[name] = cv
	m.dirty[name] = struct{}{}
	return nil
}

// same reports whether two attribute values are equal. Times compare by
// instant, ignoring location and monotonic clock reading.
func same(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// Attributes returns a copy of the attribute map.
func (m *Model) Attributes() map[string]any { return maps.Clone(m.attrs) }

// ID returns the primary key value, nil for unsaved instances.
func (m *Model) ID() any { return m.attrs[m.typ.def.PrimaryKey()] }

// IsDirty reports whether any attribute, or one of names, was written
// since the instance was loaded or saved.
func (m *Model) IsDirty(names ...string) bool {
	if len(names) == 0 {
		return len(m.dirty) > 0
	}
	for _, n := range names {
		if _, ok := m.dirty[n]; ok {
			return true
		}
	}
	return false
}

// Dirty returns the sorted names of the dirty attributes.
func (m *Model) Dirty() []string {
	return slices.Sorted(maps.Keys(m.dirty))
}

// IsNew reports whether the instance has not been inserted yet.
func (m *Model) IsNew() bool { return m.isNew }

// IsDeleted reports whether the instance was deleted.
func (m *Model) IsDeleted() bool { return m.deleted }

// Save inserts a new instance or updates the dirty attributes of a
// persisted one. Saving a clean persisted instance executes nothing.
func (m *Model) Save(ctx context.Context) error {
	t := m.typ
	if m.deleted {
		return quarry.NewConfigError(t.Table(), "save of deleted model")
	}
	if !m.isNew && len(m.dirty) == 0 {
		return nil
	}
	if t.validator != nil {
		if err := t.validator.Validate(ctx, m.Attributes()); err != nil {
			return err
		}
	}
	t.fire(ctx, EventSaving, m)
	if m.isNew {
		if err := m.insert(ctx); err != nil {
			return err
		}
	} else if err := m.update(ctx); err != nil {
		return err
	}
	m.isNew = false
	clear(m.dirty)
	t.fire(ctx, EventSaved, m)
	return nil
}

func (m *Model) insert(ctx context.Context) error {
	t := m.typ
	t.fire(ctx, EventCreating, m)
	pk := t.def.PrimaryKey()
	values := make(map[string]any, len(m.attrs)+2)
	for k, v := range m.attrs {
		if k != pk {
			values[k] = v
		}
	}
	if t.def.Timestamps() {
		now := t.reg.now()
		if values[schema.CreatedAt] == nil {
			values[schema.CreatedAt] = now
		}
		values[schema.UpdatedAt] = now
	}
	id, err := t.Query().Insert(ctx, values)
	if err != nil {
		return err
	}
	maps.Copy(m.attrs, values)
	m.attrs[pk] = id
	t.fire(ctx, EventCreated, m)
	return nil
}

func (m *Model) update(ctx context.Context) error {
	t := m.typ
	t.fire(ctx, EventUpdating, m)
	values := make(map[string]any, len(m.dirty)+1)
	for k := range m.dirty {
		values[k] = m.attrs[k]
	}
	if t.def.Timestamps() {
		values[schema.UpdatedAt] = t.reg.now()
	}
	if _, err := t.Query().Where(t.def.PrimaryKey(), sql.OpEQ, m.ID()).Update(ctx, values); err != nil {
		return err
	}
	maps.Copy(m.attrs, values)
	t.fire(ctx, EventUpdated, m)
	return nil
}

// Delete removes the row of a persisted instance.
func (m *Model) Delete(ctx context.Context) error {
	t := m.typ
	switch {
	case m.deleted:
		return quarry.NewConfigError(t.Table(), "model already deleted")
	case m.isNew:
		return quarry.NewConfigError(t.Table(), "delete of unsaved model")
	}
	t.fire(ctx, EventDeleting, m)
	n, err := t.Query().Where(t.def.PrimaryKey(), sql.OpEQ, m.ID()).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return quarry.NewNotFoundErrorWithID(t.Table(), m.ID())
	}
	m.deleted = true
	t.fire(ctx, EventDeleted, m)
	return nil
}
