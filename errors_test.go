package quarry_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := quarry.NewNotFoundError("users")
		assert.Equal(t, "quarry: users not found", err.Error())

		err = quarry.NewNotFoundErrorWithID("users", 42)
		assert.Equal(t, "quarry: users not found (id=42)", err.Error())
		assert.Equal(t, 42, err.ID())
		assert.Equal(t, "users", err.Table())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := quarry.NewNotFoundError("posts")
		assert.True(t, errors.Is(err, quarry.ErrNotFound))
		assert.True(t, quarry.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, quarry.IsNotFound(quarry.ErrNotFound))
		assert.False(t, quarry.IsNotFound(errors.New("other error")))
		assert.False(t, quarry.IsNotFound(nil))
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := quarry.NewConfigError("", "table name is required")
		assert.Equal(t, "quarry: table name is required", err.Error())

		err = quarry.Configf("users", "unknown attribute %q", "nick")
		assert.Equal(t, `quarry: users: unknown attribute "nick"`, err.Error())
	})

	t.Run("IsConfigError", func(t *testing.T) {
		err := quarry.NewConfigError("posts", "relation not registered")
		assert.True(t, errors.Is(err, quarry.ErrConfig))
		assert.True(t, quarry.IsConfigError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, quarry.IsConfigError(quarry.ErrNotFound))
		assert.False(t, quarry.IsConfigError(nil))
	})
}

func TestNotLoadedError(t *testing.T) {
	err := quarry.NewNotLoadedError("posts")
	assert.Equal(t, `quarry: relation "posts" was not loaded`, err.Error())
	assert.Equal(t, "posts", err.Relation())
	assert.True(t, quarry.IsNotLoaded(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, quarry.IsNotLoaded(errors.New("other error")))
	assert.False(t, quarry.IsNotLoaded(nil))
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := quarry.NewConstraintError("duplicate entry", nil)
		assert.Equal(t, "quarry: constraint failed: duplicate entry", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := quarry.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
		assert.True(t, quarry.IsConstraintError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, quarry.IsConstraintError(underlying))
	})
}

func TestRollback(t *testing.T) {
	cause := errors.New("insert failed")

	t.Run("NoRollbackError", func(t *testing.T) {
		assert.Same(t, cause, quarry.Rollback(cause, nil))
	})

	t.Run("Joined", func(t *testing.T) {
		rerr := errors.New("connection lost")
		err := quarry.Rollback(cause, rerr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, rerr))

		var rb *quarry.RollbackError
		require.True(t, errors.As(err, &rb))
		assert.Equal(t, "quarry: rollback failed: connection lost", rb.Error())
	})
}

func TestQueryError(t *testing.T) {
	underlying := errors.New("syntax error")

	err := quarry.NewQueryError("users", "count", underlying)
	assert.Equal(t, "quarry: querying users (count): syntax error", err.Error())
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, quarry.IsQueryError(err))

	err = quarry.NewQueryError("users", "", underlying)
	assert.Equal(t, "quarry: querying users: syntax error", err.Error())
	assert.False(t, quarry.IsQueryError(underlying))
}

func TestMutationError(t *testing.T) {
	underlying := quarry.NewConstraintError("duplicate entry", errors.New("Error 1062"))
	err := quarry.NewMutationError("users", "insert", underlying)
	assert.Equal(t, "quarry: insert users: quarry: constraint failed: duplicate entry", err.Error())
	assert.True(t, quarry.IsMutationError(err))
	assert.True(t, quarry.IsConstraintError(err))
}

func TestMigrationError(t *testing.T) {
	underlying := errors.New("table exists")
	err := quarry.NewMigrationError("1700000000_create_users", "up", underlying)
	assert.Equal(t, "quarry: migration 1700000000_create_users (up): table exists", err.Error())
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, quarry.IsMigrationError(fmt.Errorf("run: %w", err)))

	err = quarry.NewMigrationError("", "init", underlying)
	assert.Equal(t, "quarry: migration init: table exists", err.Error())
	assert.False(t, quarry.IsMigrationError(nil))
}
