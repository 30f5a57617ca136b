package model

import (
	"context"
	"maps"
	"slices"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
	"github.com/syssam/quarry/schema/mixin"
)

// Kind is the cardinality of a relation.
type Kind uint8

// Relation kinds.
const (
	BelongsTo Kind = iota + 1
	HasOne
	HasMany
	ManyToMany
)

var kindNames = [...]string{
	BelongsTo:  "BelongsTo",
	HasOne:     "HasOne",
	HasMany:    "HasMany",
	ManyToMany: "ManyToMany",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(invalid)"
}

// Many reports whether the relation resolves to a list.
func (k Kind) Many() bool { return k == HasMany || k == ManyToMany }

// Relation is a named association between a parent type and a related
// type. It is declared once on the parent type and shared by all its
// instances.
type Relation struct {
	name    string
	kind    Kind
	parent  *Type
	related *Type

	foreignKey string
	localKey   string
	ownerKey   string

	pivotTable      string
	pivotForeignKey string
	pivotRelatedKey string
	pivotTimestamps bool
}

// RelationOption overrides a resolved key name of a relation.
type RelationOption func(*Relation)

// ForeignKey sets the foreign key column. It lives on the parent for
// BelongsTo and on the related table for HasOne and HasMany.
func ForeignKey(name string) RelationOption {
	return func(r *Relation) { r.foreignKey = name }
}

// LocalKey sets the parent column referenced by HasOne, HasMany and
// ManyToMany relations.
func LocalKey(name string) RelationOption {
	return func(r *Relation) { r.localKey = name }
}

// OwnerKey sets the related column referenced by BelongsTo and
// ManyToMany relations.
func OwnerKey(name string) RelationOption {
	return func(r *Relation) { r.ownerKey = name }
}

// PivotTable sets the pivot table of a ManyToMany relation.
func PivotTable(name string) RelationOption {
	return func(r *Relation) { r.pivotTable = name }
}

// PivotForeignKey sets the pivot column referencing the parent.
func PivotForeignKey(name string) RelationOption {
	return func(r *Relation) { r.pivotForeignKey = name }
}

// PivotRelatedKey sets the pivot column referencing the related type.
func PivotRelatedKey(name string) RelationOption {
	return func(r *Relation) { r.pivotRelatedKey = name }
}

// WithTimestamps maintains created_at and updated_at on pivot rows.
func WithTimestamps() RelationOption {
	return func(r *Relation) { r.pivotTimestamps = true }
}

// BelongsTo declares that t holds a foreign key to related.
func (t *Type) BelongsTo(name string, related *Type, opts ...RelationOption) (*Relation, error) {
	return t.relate(name, BelongsTo, related, opts)
}

// HasOne declares that related holds a foreign key to t, at most one row.
func (t *Type) HasOne(name string, related *Type, opts ...RelationOption) (*Relation, error) {
	return t.relate(name, HasOne, related, opts)
}

// HasMany declares that related holds a foreign key to t.
func (t *Type) HasMany(name string, related *Type, opts ...RelationOption) (*Relation, error) {
	return t.relate(name, HasMany, related, opts)
}

// ManyToMany declares an association through a pivot table.
func (t *Type) ManyToMany(name string, related *Type, opts ...RelationOption) (*Relation, error) {
	return t.relate(name, ManyToMany, related, opts)
}

func (t *Type) relate(name string, kind Kind, related *Type, opts []RelationOption) (*Relation, error) {
	if name == "" {
		return nil, quarry.NewConfigError(t.Table(), "relation without name")
	}
	if related == nil {
		return nil, quarry.Configf(t.Table(), "relation %q without related type", name)
	}
	r := &Relation{name: name, kind: kind, parent: t, related: related}
	r.defaults()
	for _, opt := range opts {
		opt(r)
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.relations[name]; ok {
		return nil, quarry.Configf(t.Table(), "relation %q already defined", name)
	}
	t.relations[name] = r
	t.relOrder = append(t.relOrder, name)
	return r, nil
}

func (r *Relation) defaults() {
	parent, related := r.parent.Table(), r.related.Table()
	switch r.kind {
	case BelongsTo:
		r.foreignKey = related + "_id"
		r.ownerKey = r.related.def.PrimaryKey()
	case HasOne, HasMany:
		r.foreignKey = parent + "_id"
		r.localKey = r.parent.def.PrimaryKey()
	case ManyToMany:
		tables := []string{parent, related}
		slices.Sort(tables)
		r.pivotTable = tables[0] + "_" + tables[1]
		r.pivotForeignKey = parent + "_id"
		r.pivotRelatedKey = related + "_id"
		r.localKey = r.parent.def.PrimaryKey()
		r.ownerKey = r.related.def.PrimaryKey()
	}
}

func (r *Relation) check() error {
	var missing []string
	need := func(t *Type, col string) {
		if !hasColumn(t.def, col) {
			missing = append(missing, t.Table()+"."+col)
		}
	}
	switch r.kind {
	case BelongsTo:
		need(r.parent, r.foreignKey)
		need(r.related, r.ownerKey)
	case HasOne, HasMany:
		need(r.related, r.foreignKey)
		need(r.parent, r.localKey)
	case ManyToMany:
		need(r.parent, r.localKey)
		need(r.related, r.ownerKey)
		if r.pivotTable == "" || r.pivotForeignKey == "" || r.pivotRelatedKey == "" || r.pivotForeignKey == r.pivotRelatedKey {
			return quarry.Configf(r.parent.Table(), "relation %q: invalid pivot %s(%s, %s)", r.name, r.pivotTable, r.pivotForeignKey, r.pivotRelatedKey)
		}
	default:
		return quarry.Configf(r.parent.Table(), "relation %q: invalid kind", r.name)
	}
	if len(missing) > 0 {
		return quarry.Configf(r.parent.Table(), "relation %q: unknown column %v", r.name, missing)
	}
	return nil
}

func hasColumn(def *schema.Definition, col string) bool {
	if col == def.PrimaryKey() {
		return true
	}
	_, ok := def.Field(col)
	return ok
}

// Name returns the relation name.
func (r *Relation) Name() string { return r.name }

// Kind returns the relation kind.
func (r *Relation) Kind() Kind { return r.kind }

// Parent returns the declaring type.
func (r *Relation) Parent() *Type { return r.parent }

// Related returns the related type.
func (r *Relation) Related() *Type { return r.related }

// ForeignKey returns the foreign key column.
func (r *Relation) ForeignKey() string { return r.foreignKey }

// PivotTable returns the pivot table of a ManyToMany relation.
func (r *Relation) PivotTable() string { return r.pivotTable }

// parentKey is the parent column whose value selects the related rows.
func (r *Relation) parentKey() string {
	if r.kind == BelongsTo {
		return r.foreignKey
	}
	return r.localKey
}

// relatedKey is the column of the related rows matched against the parent
// key value.
func (r *Relation) relatedKey() string {
	switch r.kind {
	case BelongsTo:
		return r.ownerKey
	case ManyToMany:
		return r.pivotTable + "." + r.pivotForeignKey
	default:
		return r.foreignKey
	}
}

// base returns the unconstrained query on the related rows.
func (r *Relation) base() *sql.QueryBuilder {
	if r.kind != ManyToMany {
		return r.related.Query()
	}
	rt := r.related.Table()
	// Pivot mutations invalidate the pivot table only, so joined reads
	// bypass the cache.
	return r.related.reg.query(r.related.reg.drv, rt, false).
		Select(rt+".*").
		InnerJoin(r.pivotTable, rt+"."+r.ownerKey+" = "+r.pivotTable+"."+r.pivotRelatedKey)
}

// Query returns the query selecting the rows related to parent. Callers
// may add predicates before executing it with Type.All.
func (r *Relation) Query(parent *Model) *sql.QueryBuilder {
	q := r.base().Where(r.relatedKey(), sql.OpEQ, parent.Get(r.parentKey()))
	if !r.kind.Many() {
		q.Limit(1)
	}
	return q
}

// fetch loads the rows related to parent.
func (r *Relation) fetch(ctx context.Context, parent *Model) ([]*Model, error) {
	if parent.Get(r.parentKey()) == nil {
		return []*Model{}, nil
	}
	return r.related.All(ctx, r.Query(parent))
}

// store caches models on parent in the shape of the relation kind.
func (r *Relation) store(parent *Model, models []*Model) {
	if r.kind.Many() {
		if models == nil {
			models = []*Model{}
		}
		parent.relations[r.name] = models
		return
	}
	var one *Model
	if len(models) > 0 {
		one = models[0]
	}
	parent.relations[r.name] = one
}

func (r *Relation) pivotDefinition() *schema.Definition {
	opts := []schema.Option{schema.WithoutTimestamps()}
	if r.pivotTimestamps {
		opts = append(opts, schema.WithMixin(mixin.Time{}))
	}
	return schema.New(r.pivotTable, []field.Field{
		field.Int(r.pivotForeignKey),
		field.Int(r.pivotRelatedKey),
	}, opts...)
}

// Relation returns the relation declared under name.
func (t *Type) Relation(name string) (*Relation, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.relations[name]
	if !ok {
		return nil, quarry.Configf(t.Table(), "relation %q is not defined", name)
	}
	return r, nil
}

// Relations returns the declared relations in declaration order.
func (t *Type) Relations() []*Relation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rels := make([]*Relation, len(t.relOrder))
	for i, name := range t.relOrder {
		rels[i] = t.relations[name]
	}
	return rels
}

func (t *Type) resolve(names []string) ([]*Relation, error) {
	rels := make([]*Relation, 0, len(names))
	for _, name := range names {
		r, err := t.Relation(name)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, nil
}

// Load fetches and caches the named relations, replacing cached results.
// Every name is resolved before any query runs.
func (m *Model) Load(ctx context.Context, names ...string) error {
	rels, err := m.typ.resolve(names)
	if err != nil {
		return err
	}
	for _, r := range rels {
		models, err := r.fetch(ctx, m)
		if err != nil {
			return err
		}
		r.store(m, models)
	}
	return nil
}

// LoadMissing is like Load but skips relations already cached.
func (m *Model) LoadMissing(ctx context.Context, names ...string) error {
	rels, err := m.typ.resolve(names)
	if err != nil {
		return err
	}
	var missing []string
	for _, r := range rels {
		if !m.Loaded(r.name) {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return m.Load(ctx, missing...)
}

// Loaded reports whether the relation name is cached on the instance.
func (m *Model) Loaded(name string) bool {
	_, ok := m.relations[name]
	return ok
}

// Relations returns the sorted names of the cached relations.
func (m *Model) Relations() []string {
	return slices.Sorted(maps.Keys(m.relations))
}

// One returns the cached result of a BelongsTo or HasOne relation. A nil
// model means no related row exists.
func (m *Model) One(name string) (*Model, error) {
	v, err := m.cached(name, false)
	if err != nil {
		return nil, err
	}
	one, _ := v.(*Model)
	return one, nil
}

// Many returns the cached result of a HasMany or ManyToMany relation.
func (m *Model) Many(name string) ([]*Model, error) {
	v, err := m.cached(name, true)
	if err != nil {
		return nil, err
	}
	return v.([]*Model), nil
}

func (m *Model) cached(name string, many bool) (any, error) {
	r, err := m.typ.Relation(name)
	if err != nil {
		return nil, err
	}
	if r.kind.Many() != many {
		return nil, quarry.Configf(m.typ.Table(), "relation %q is %s", name, r.kind)
	}
	v, ok := m.relations[name]
	if !ok {
		return nil, quarry.NewNotLoadedError(name)
	}
	return v, nil
}
