package model

import (
	"context"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/contrib/dataloader"
	"github.com/syssam/quarry/dialect/sql"
)

const (
	// batchSize bounds the number of keys in one IN list.
	batchSize = 500

	pivotKeyAlias = "quarry_pivot_key"
)

// LoadAll loads the named relations of models with one query per relation
// and batch of keys, instead of one query per model. All models must share
// a type.
func LoadAll(ctx context.Context, models []*Model, names ...string) error {
	if len(models) == 0 {
		return nil
	}
	t := models[0].typ
	for _, m := range models[1:] {
		if m.typ != t {
			return quarry.Configf(t.Table(), "LoadAll over mixed types %s and %s", t.Table(), m.typ.Table())
		}
	}
	rels, err := t.resolve(names)
	if err != nil {
		return err
	}
	for _, r := range rels {
		if err := r.loadAll(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

// keyed pairs a related model with the parent key it was loaded for.
type keyed struct {
	key   any
	model *Model
}

func (r *Relation) loadAll(ctx context.Context, models []*Model) error {
	keys := make([]any, 0, len(models))
	for _, m := range models {
		if k := normalizeKey(m.Get(r.parentKey())); k != nil {
			keys = append(keys, k)
		}
	}
	keys = dataloader.UniqueKeys(keys)

	var loaded []keyed
	for _, chunk := range dataloader.Chunk(keys, batchSize) {
		batch, err := r.batch(ctx, chunk)
		if err != nil {
			return err
		}
		loaded = append(loaded, batch...)
	}
	groups := dataloader.GroupByKey(loaded, func(k keyed) any { return k.key })
	for _, m := range models {
		var related []*Model
		for _, k := range groups[normalizeKey(m.Get(r.parentKey()))] {
			related = append(related, k.model)
		}
		r.store(m, related)
	}
	return nil
}

func (r *Relation) batch(ctx context.Context, keys []any) ([]keyed, error) {
	var (
		q   *sql.QueryBuilder
		col string
	)
	switch r.kind {
	case ManyToMany:
		col = pivotKeyAlias
		q = r.base().
			Select(r.related.Table()+".*", r.pivotTable+"."+r.pivotForeignKey+" AS "+pivotKeyAlias).
			WhereIn(r.pivotTable+"."+r.pivotForeignKey, keys...)
	default:
		col = r.relatedKey()
		q = r.related.Query().WhereIn(col, keys...)
	}
	records, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]keyed, 0, len(records))
	for _, rec := range records {
		m, err := r.related.hydrate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, keyed{key: normalizeKey(rec[col]), model: m})
	}
	return out, nil
}
