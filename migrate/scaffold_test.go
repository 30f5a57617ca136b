package migrate

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
)

var created = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestScaffoldSQL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	path, err := Scaffold(dir, "CreateUsers", created, FormatSQL)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1709287200000_create_users.sql"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "scaffold_sql", data)

	migrations, err := Load(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "1709287200000_create_users", migrations[0].Name)
	assert.Equal(t, int64(1709287200000), migrations[0].Timestamp)

	_, err = Scaffold(dir, "create_users", created, FormatSQL)
	require.ErrorIs(t, err, os.ErrExist, "an existing migration is never overwritten")
}

func TestScaffoldGo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "schema")
	path, err := Scaffold(dir, "add posts", created, FormatGo)
	require.NoError(t, err)
	assert.Equal(t, "1709287200000_add_posts.go", filepath.Base(path))

	f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ParseComments)
	require.NoError(t, err)
	assert.Equal(t, "schema", f.Name.Name)

	var imports []string
	for _, imp := range f.Imports {
		imports = append(imports, imp.Path.Value)
	}
	assert.ElementsMatch(t, []string{`"context"`, `"github.com/syssam/quarry/dialect"`, `"github.com/syssam/quarry/migrate"`}, imports)

	require.Len(t, f.Decls, 2)
	fn, ok := f.Decls[1].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "AddPosts1709287200000", fn.Name.Name)

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, `Name:\s+"1709287200000_add_posts"`, string(src))
	assert.Regexp(t, `Timestamp:\s+1709287200000\b`, string(src))
}

func TestScaffoldErrors(t *testing.T) {
	_, err := Scaffold(t.TempDir(), " -- ", created, FormatSQL)
	require.True(t, quarry.IsConfigError(err))

	_, err = Scaffold(t.TempDir(), "users", created, Format(7))
	require.True(t, quarry.IsConfigError(err))
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"CreateUsers":     "create_users",
		"create_users":    "create_users",
		"add posts table": "add_posts_table",
		"  users  ":       "users",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Label(in), in)
	}
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "migrations", packageName("db/migrations"))
	assert.Equal(t, "schema", packageName("./schema/"))
	assert.Equal(t, "migrations", packageName("db/2024-q1"))
	assert.Equal(t, "migrations", packageName("db/func"))
}
