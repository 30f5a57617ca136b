package migrate

import (
	"context"
	"regexp"
	"strconv"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
)

// Func is the body of one migration direction.
type Func func(ctx context.Context, eq dialect.ExecQuerier) error

// Migration is one schema change. Name is unique and has the form
// <timestamp>_<label>; migrations apply in Timestamp order.
type Migration struct {
	Name      string
	Timestamp int64
	Up        Func
	Down      Func
}

var nameRE = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)$`)

// ParseName splits a migration name into its timestamp and label.
func ParseName(name string) (int64, string, error) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return 0, "", quarry.Configf(name, "migration name must match <timestamp>_<name>")
	}
	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", quarry.Configf(name, "migration timestamp: %v", err)
	}
	return ts, m[2], nil
}

// New returns a migration named name with the given bodies. The timestamp
// is taken from the name.
func New(name string, up, down Func) (*Migration, error) {
	ts, _, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return &Migration{Name: name, Timestamp: ts, Up: up, Down: down}, nil
}

// Exec returns a body executing statements in order.
func Exec(statements ...string) Func {
	return func(ctx context.Context, eq dialect.ExecQuerier) error {
		for _, stmt := range statements {
			if err := eq.Exec(ctx, stmt, []any{}, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

// less orders migrations by timestamp, then name.
func less(a, b *Migration) int {
	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	}
	return 0
}
