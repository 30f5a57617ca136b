package model

import (
	"context"
	"maps"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/contrib/dataloader"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/schema"
)

// Attach links parent to the related ids through the pivot table. Pairs
// that are already attached are skipped. attrs are stored on every new
// pivot row.
func (r *Relation) Attach(ctx context.Context, parent *Model, ids []any, attrs map[string]any) error {
	key, err := r.pivotKey(parent)
	if err != nil {
		return err
	}
	ids = pivotIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	defer delete(parent.relations, r.name)
	return r.parent.reg.inTx(ctx, func(eq dialect.ExecQuerier) error {
		return r.attach(ctx, eq, key, ids, attrs)
	})
}

// Detach removes the pivot rows linking parent to ids, or all of its pivot
// rows when no ids are given. It returns the number of rows removed.
func (r *Relation) Detach(ctx context.Context, parent *Model, ids ...any) (int64, error) {
	key, err := r.pivotKey(parent)
	if err != nil {
		return 0, err
	}
	all := len(ids) == 0
	if ids = pivotIDs(ids); len(ids) == 0 && !all {
		return 0, nil
	}
	defer delete(parent.relations, r.name)
	return r.detach(ctx, r.parent.reg.drv, key, ids)
}

// Sync makes ids the exact set attached to parent: all existing pivot rows
// are removed and ids attached, in one transaction.
func (r *Relation) Sync(ctx context.Context, parent *Model, ids []any, attrs map[string]any) error {
	key, err := r.pivotKey(parent)
	if err != nil {
		return err
	}
	ids = pivotIDs(ids)
	defer delete(parent.relations, r.name)
	return r.parent.reg.inTx(ctx, func(eq dialect.ExecQuerier) error {
		if _, err := r.detach(ctx, eq, key, nil); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return r.attach(ctx, eq, key, ids, attrs)
	})
}

func (r *Relation) pivotKey(parent *Model) (any, error) {
	if r.kind != ManyToMany {
		return nil, quarry.Configf(r.parent.Table(), "relation %q is %s, not ManyToMany", r.name, r.kind)
	}
	if parent == nil || parent.typ != r.parent {
		return nil, quarry.Configf(r.parent.Table(), "relation %q: parent is not a %s model", r.name, r.parent.Table())
	}
	key := parent.Get(r.localKey)
	if parent.isNew || key == nil {
		return nil, quarry.Configf(r.parent.Table(), "relation %q: parent is not persisted", r.name)
	}
	return key, nil
}

func (r *Relation) pivotQuery(eq dialect.ExecQuerier) *sql.QueryBuilder {
	return r.parent.reg.query(eq, r.pivotTable, false)
}

func (r *Relation) attach(ctx context.Context, eq dialect.ExecQuerier, key any, ids []any, attrs map[string]any) error {
	existing, err := r.pivotQuery(eq).
		Select(r.pivotRelatedKey).
		Where(r.pivotForeignKey, sql.OpEQ, key).
		WhereIn(r.pivotRelatedKey, ids...).
		Get(ctx)
	if err != nil {
		return err
	}
	attached := make(map[any]bool, len(existing))
	for _, rec := range existing {
		attached[normalizeKey(rec[r.pivotRelatedKey])] = true
	}
	now := r.parent.reg.now()
	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if attached[id] {
			continue
		}
		row := maps.Clone(attrs)
		if row == nil {
			row = make(map[string]any, 4)
		}
		if r.pivotTimestamps {
			row[schema.CreatedAt], row[schema.UpdatedAt] = now, now
		}
		row[r.pivotForeignKey], row[r.pivotRelatedKey] = key, id
		rows = append(rows, row)
	}
	_, err = r.pivotQuery(eq).InsertMany(ctx, rows)
	return err
}

func (r *Relation) detach(ctx context.Context, eq dialect.ExecQuerier, key any, ids []any) (int64, error) {
	q := r.pivotQuery(eq).Where(r.pivotForeignKey, sql.OpEQ, key)
	if len(ids) > 0 {
		q.WhereIn(r.pivotRelatedKey, ids...)
	}
	return q.Delete(ctx)
}

// pivotIDs normalises ids and drops duplicates and nils.
func pivotIDs(ids []any) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if k := normalizeKey(id); k != nil {
			out = append(out, k)
		}
	}
	return dataloader.UniqueKeys(out)
}
