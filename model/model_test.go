package model

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
	"github.com/syssam/quarry/validate"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	reg      *Registry
	mock     sqlmock.Sqlmock
	log      *bytes.Buffer
	users    *Type
	posts    *Type
	profiles *Type
	roles    *Type
}

func newFixture(t *testing.T, opts ...TypeOption) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{mock: mock, log: &bytes.Buffer{}}
	f.reg = NewRegistry(sql.OpenDB(dialect.MySQL, db),
		WithLogger(slog.New(slog.NewTextHandler(f.log, nil))),
		WithClock(func() time.Time { return now }),
	)
	f.users, err = f.reg.Register(schema.New("users", []field.Field{
		field.String("name"),
		field.Int("age").Nullable(),
	}), opts...)
	require.NoError(t, err)
	f.posts, err = f.reg.Register(schema.New("posts", []field.Field{
		field.String("title"),
		field.Int("users_id"),
	}, schema.WithoutTimestamps()))
	require.NoError(t, err)
	f.profiles, err = f.reg.Register(schema.New("profiles", []field.Field{
		field.String("bio"),
		field.Int("users_id"),
	}, schema.WithoutTimestamps()))
	require.NoError(t, err)
	f.roles, err = f.reg.Register(schema.New("roles", []field.Field{
		field.String("name"),
	}, schema.WithoutTimestamps()))
	require.NoError(t, err)

	_, err = f.users.HasMany("posts", f.posts)
	require.NoError(t, err)
	_, err = f.users.HasOne("profile", f.profiles)
	require.NoError(t, err)
	_, err = f.users.ManyToMany("roles", f.roles)
	require.NoError(t, err)
	_, err = f.posts.BelongsTo("author", f.users)
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, id int64, name string) *Model {
	t.Helper()
	m, err := f.users.New(map[string]any{"id": id, "name": name})
	require.NoError(t, err)
	return m
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	_, err := f.reg.Register(schema.New("users", nil))
	require.True(t, quarry.IsConfigError(err))
	assert.Contains(t, err.Error(), "already registered")

	_, err = f.reg.Register(schema.New("", nil))
	require.True(t, quarry.IsConfigError(err))

	_, err = f.reg.Register(nil)
	require.True(t, quarry.IsConfigError(err))

	typ, err := f.reg.Type("posts")
	require.NoError(t, err)
	assert.Same(t, f.posts, typ)

	_, err = f.reg.Type("comments")
	require.True(t, quarry.IsConfigError(err))
	assert.Contains(t, err.Error(), "comments")

	var tables []string
	for _, typ := range f.reg.Types() {
		tables = append(tables, typ.Table())
	}
	assert.Equal(t, []string{"users", "posts", "profiles", "roles"}, tables)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestNew(t *testing.T) {
	f := newFixture(t)

	m, err := f.users.New(map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	assert.True(t, m.IsNew())
	assert.False(t, m.IsDirty())
	assert.Nil(t, m.ID())
	assert.Equal(t, int64(30), m.Get("age"))

	m, err = f.users.New(map[string]any{"id": "7", "name": "Alice"})
	require.NoError(t, err)
	assert.False(t, m.IsNew())
	assert.Equal(t, int64(7), m.ID())

	_, err = f.users.New(map[string]any{"nickname": "a8m"})
	require.True(t, quarry.IsConfigError(err))

	_, err = f.users.New(map[string]any{"age": "thirty"})
	require.True(t, quarry.IsConfigError(err))
}

func TestSet(t *testing.T) {
	f := newFixture(t)
	m := f.user(t, 7, "Alice")

	require.NoError(t, m.Set("name", "Alice"))
	assert.False(t, m.IsDirty(), "writing the current value keeps the model clean")

	require.NoError(t, m.Set("name", "Bob"))
	require.NoError(t, m.Set("age", 31))
	assert.True(t, m.IsDirty())
	assert.True(t, m.IsDirty("age"))
	assert.False(t, m.IsDirty("created_at"))
	assert.Equal(t, []string{"age", "name"}, m.Dirty())

	err := m.Set("nickname", "a8m")
	require.True(t, quarry.IsConfigError(err))
	assert.Contains(t, err.Error(), "nickname")

	require.True(t, quarry.IsConfigError(m.Set("id", 8)))
	require.Error(t, m.Set("age", "old"))
	require.Error(t, m.Set("name", nil))
	require.NoError(t, m.Set("age", nil))

	attrs := m.Attributes()
	attrs["name"] = "Mallory"
	assert.Equal(t, "Bob", m.Get("name"))
}

func TestSaveInsert(t *testing.T) {
	f := newFixture(t)
	var events []Event
	for _, e := range []Event{EventSaving, EventCreating, EventCreated, EventUpdating, EventUpdated, EventSaved} {
		f.users.On(e, func(_ context.Context, m *Model) error {
			events = append(events, e)
			return nil
		})
	}

	f.mock.ExpectExec("INSERT INTO users (age, created_at, name, updated_at) VALUES (?, ?, ?, ?)").
		WithArgs(30, now, "Alice", now).
		WillReturnResult(sqlmock.NewResult(7, 1))

	m, err := f.users.New(map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.NoError(t, m.Save(context.Background()))

	assert.Equal(t, int64(7), m.ID())
	assert.False(t, m.IsNew())
	assert.False(t, m.IsDirty())
	assert.Equal(t, now, m.Get("created_at"))
	assert.Equal(t, []Event{EventSaving, EventCreating, EventCreated, EventSaved}, events)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSaveUpdate(t *testing.T) {
	f := newFixture(t)
	var events []Event
	for _, e := range []Event{EventSaving, EventCreating, EventCreated, EventUpdating, EventUpdated, EventSaved} {
		f.users.On(e, func(_ context.Context, m *Model) error {
			events = append(events, e)
			return nil
		})
	}
	ctx := context.Background()
	m := f.user(t, 7, "Alice")

	require.NoError(t, m.Save(ctx), "saving a clean model executes nothing")
	assert.Empty(t, events)

	f.mock.ExpectExec("UPDATE users SET name = ?, updated_at = ? WHERE id = ?").
		WithArgs("Bob", now, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, m.Set("name", "Bob"))
	require.NoError(t, m.Save(ctx))
	assert.False(t, m.IsDirty())
	assert.Equal(t, now, m.Get("updated_at"))
	assert.Equal(t, []Event{EventSaving, EventUpdating, EventUpdated, EventSaved}, events)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSaveWithoutTimestamps(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec("INSERT INTO roles (name) VALUES (?)").
		WithArgs("admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	m, err := f.roles.New(map[string]any{"name": "admin"})
	require.NoError(t, err)
	require.NoError(t, m.Save(context.Background()))
	assert.Equal(t, int64(1), m.ID())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSaveError(t *testing.T) {
	f := newFixture(t)
	var saved bool
	f.users.On(EventSaved, func(context.Context, *Model) error {
		saved = true
		return nil
	})
	f.mock.ExpectExec("INSERT INTO users (created_at, name, updated_at) VALUES (?, ?, ?)").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'Alice' for key 'name'"))

	m, err := f.users.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	err = m.Save(context.Background())
	require.True(t, quarry.IsMutationError(err))
	assert.True(t, quarry.IsConstraintError(err))
	assert.True(t, m.IsNew())
	assert.False(t, saved)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHooksAreIsolated(t *testing.T) {
	f := newFixture(t)
	var ran []string
	f.users.
		On(EventCreating, func(context.Context, *Model) error {
			ran = append(ran, "error")
			return errors.New("hook exploded")
		}).
		On(EventCreating, func(context.Context, *Model) error {
			ran = append(ran, "panic")
			panic("hook panicked")
		}).
		On(EventCreating, func(context.Context, *Model) error {
			ran = append(ran, "ok")
			return nil
		})

	f.mock.ExpectExec("INSERT INTO users (created_at, name, updated_at) VALUES (?, ?, ?)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	m, err := f.users.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	require.NoError(t, m.Save(context.Background()))
	assert.Equal(t, []string{"error", "panic", "ok"}, ran)
	assert.Contains(t, f.log.String(), "hook exploded")
	assert.Contains(t, f.log.String(), "hook panicked")
	assert.Contains(t, f.log.String(), "event=creating")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHookMutatesBeforeInsert(t *testing.T) {
	f := newFixture(t)
	f.users.On(EventCreating, func(_ context.Context, m *Model) error {
		return m.Set("age", 18)
	})
	f.mock.ExpectExec("INSERT INTO users (age, created_at, name, updated_at) VALUES (?, ?, ?, ?)").
		WithArgs(18, now, "Alice", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	m, err := f.users.New(map[string]any{"name": "Alice"})
	require.NoError(t, err)
	require.NoError(t, m.Save(context.Background()))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSaveValidates(t *testing.T) {
	v := validate.New().
		Add("name", validate.Required()).
		Add("age", validate.Min(18))
	f := newFixture(t, WithValidator(v))
	var fired bool
	f.users.On(EventSaving, func(context.Context, *Model) error {
		fired = true
		return nil
	})

	m, err := f.users.New(map[string]any{"age": 12})
	require.NoError(t, err)
	err = m.Save(context.Background())
	require.ErrorIs(t, err, validate.ErrValidation)
	verrs, ok := validate.AsErrors(err)
	require.True(t, ok)
	assert.True(t, verrs.HasError("name"))
	assert.True(t, verrs.HasError("age"))
	assert.False(t, fired)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var events []Event
	for _, e := range []Event{EventDeleting, EventDeleted} {
		f.users.On(e, func(context.Context, *Model) error {
			events = append(events, e)
			return nil
		})
	}

	t.Run("unsaved", func(t *testing.T) {
		m, err := f.users.New(map[string]any{"name": "Alice"})
		require.NoError(t, err)
		require.True(t, quarry.IsConfigError(m.Delete(ctx)))
	})

	t.Run("persisted", func(t *testing.T) {
		f.mock.ExpectExec("DELETE FROM users WHERE id = ?").
			WithArgs(7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		m := f.user(t, 7, "Alice")
		require.NoError(t, m.Delete(ctx))
		assert.True(t, m.IsDeleted())
		assert.Equal(t, []Event{EventDeleting, EventDeleted}, events)

		require.True(t, quarry.IsConfigError(m.Delete(ctx)))
		require.NoError(t, m.Set("name", "Bob"))
		require.True(t, quarry.IsConfigError(m.Save(ctx)))
	})

	t.Run("missing_row", func(t *testing.T) {
		f.mock.ExpectExec("DELETE FROM users WHERE id = ?").
			WithArgs(8).
			WillReturnResult(sqlmock.NewResult(0, 0))
		m := f.user(t, 8, "Bob")
		err := m.Delete(ctx)
		require.True(t, quarry.IsNotFound(err))
		assert.False(t, m.IsDeleted())
	})
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("SELECT * FROM users WHERE id = ? LIMIT ?").
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "created_at", "legacy"}).
			AddRow(int64(7), []byte("Alice"), "30", "2024-03-01 10:00:00", "dropped"))
	m, err := f.users.Find(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.ID())
	assert.Equal(t, "Alice", m.Get("name"))
	assert.Equal(t, int64(30), m.Get("age"))
	assert.Equal(t, now, m.Get("created_at"))
	assert.NotContains(t, m.Attributes(), "legacy")
	assert.False(t, m.IsNew())
	assert.False(t, m.IsDirty())

	f.mock.ExpectQuery("SELECT * FROM users WHERE id = ? LIMIT ?").
		WithArgs(8, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = f.users.Find(ctx, 8)
	require.True(t, quarry.IsNotFound(err))
	assert.Contains(t, err.Error(), "id=8")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSetSameInstant(t *testing.T) {
	at := time.Now()
	hydrated := at.Round(0).UTC()
	tests := []struct {
		name  string
		value any
		dirty bool
	}{
		{"monotonic_local", at, false},
		{"fixed_zone", at.In(time.FixedZone("UTC+5", 5*3600)), false},
		{"rfc3339_string", at.Format(time.RFC3339Nano), false},
		{"later", at.Add(time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mock.ExpectQuery("SELECT * FROM users WHERE id = ? LIMIT ?").
				WithArgs(7, 1).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
					AddRow(int64(7), "Alice", hydrated))
			m, err := f.users.Find(context.Background(), 7)
			require.NoError(t, err)
			require.False(t, m.IsDirty())

			require.NoError(t, m.Set("created_at", tt.value))
			assert.Equal(t, tt.dirty, m.IsDirty("created_at"))
			require.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT * FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "admin").AddRow(2, "editor"))

	roles, err := f.roles.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "editor", roles[1].Get("name"))

	_, err = f.roles.All(context.Background(), f.users.Query())
	require.True(t, quarry.IsConfigError(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{7, int64(7)},
		{uint8(7), int64(7)},
		{int32(7), int64(7)},
		{7.0, int64(7)},
		{"7", int64(7)},
		{[]byte("7"), int64(7)},
		{"abc", "abc"},
		{7.5, "7.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeKey(tt.in), "%#v", tt.in)
	}
}
