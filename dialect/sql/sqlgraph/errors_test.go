package sqlgraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
)

func TestMySQLErrors(t *testing.T) {
	tests := []struct {
		name   string
		number uint16
		unique bool
		fk     bool
		check  bool
	}{
		{"duplicate", mysqlDuplicateEntry, true, false, false},
		{"fk_parent", mysqlForeignKeyParent, false, true, false},
		{"fk_child", mysqlForeignKeyChild, false, true, false},
		{"check", mysqlCheckConstraintViolate, false, false, true},
		{"syntax", 1064, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("dialect/sql: exec: %w", &mysql.MySQLError{Number: tt.number, Message: "boom"})
			assert.Equal(t, tt.unique, IsUniqueConstraintError(err))
			assert.Equal(t, tt.fk, IsForeignKeyConstraintError(err))
			assert.Equal(t, tt.check, IsCheckConstraintError(err))
			assert.Equal(t, tt.unique || tt.fk || tt.check, IsConstraintError(err))
		})
	}
}

func TestStringFallback(t *testing.T) {
	assert.True(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: users.email")))
	assert.True(t, IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed")))
	assert.True(t, IsCheckConstraintError(errors.New("CHECK constraint failed: age")))
	assert.False(t, IsConstraintError(errors.New("connection refused")))
	assert.False(t, IsConstraintError(nil))
}

func TestClassify(t *testing.T) {
	driverErr := &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry 'a' for key 'email'"}
	err := Classify(fmt.Errorf("dialect/sql: exec: %w", driverErr))
	require.Error(t, err)
	assert.True(t, quarry.IsConstraintError(err))
	assert.Equal(t, "quarry: constraint failed: unique", err.Error())

	var me *mysql.MySQLError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, uint16(mysqlDuplicateEntry), me.Number)

	assert.Same(t, err, Classify(err), "already classified errors are returned as-is")
	plain := errors.New("timeout")
	assert.Same(t, plain, Classify(plain))
	assert.NoError(t, Classify(nil))
	assert.Equal(t, "quarry: constraint failed: foreign key", Classify(errors.New("Error 1452: Cannot add")).Error())
	assert.Equal(t, "quarry: constraint failed: check", Classify(errors.New("CHECK constraint failed")).Error())
}
