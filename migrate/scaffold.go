package migrate

import (
	"bytes"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/syssam/quarry"
)

// Format is the kind of file written by Scaffold.
type Format int

// Scaffold formats.
const (
	FormatSQL Format = iota
	FormatGo
)

var sqlTemplate = template.Must(template.New("migration").Parse(`-- Migration: {{ .Name }}
-- Created at: {{ .Created }}

-- +migrate Up
-- Statements executed when the migration is applied.


-- +migrate Down
-- Statements executed when the migration is rolled back.

`))

// Scaffold writes an empty migration named label into dir and returns the
// path of the new file. The file name is <unix millis>_<label> where label
// is normalised to snake case.
func Scaffold(dir, label string, now time.Time, format Format) (string, error) {
	label = Label(label)
	if label == "" {
		return "", quarry.NewConfigError("migrate", "migration name is empty")
	}
	ts := now.UnixMilli()
	name := fmt.Sprintf("%d_%s", ts, label)

	var (
		buf bytes.Buffer
		ext string
	)
	switch format {
	case FormatSQL:
		ext = ".sql"
		err := sqlTemplate.Execute(&buf, struct{ Name, Created string }{name, now.UTC().Format(time.RFC3339)})
		if err != nil {
			return "", err
		}
	case FormatGo:
		ext = ".go"
		if err := goFile(packageName(dir), name, label, ts).Render(&buf); err != nil {
			return "", err
		}
	default:
		return "", quarry.Configf("migrate", "unknown scaffold format %d", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Label normalises a migration label to snake case, keeping only letters,
// digits and underscores.
func Label(s string) string {
	s = inflect.Underscore(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '_' })
	return strings.Join(parts, "_")
}

// packageName derives the Go package of a migration directory.
func packageName(dir string) string {
	base := strings.ToLower(filepath.Base(filepath.Clean(dir)))
	if token.IsIdentifier(base) && !token.IsKeyword(base) {
		return base
	}
	return "migrations"
}

func goFile(pkg, name, label string, ts int64) *jen.File {
	const (
		migratePkg = "github.com/syssam/quarry/migrate"
		dialectPkg = "github.com/syssam/quarry/dialect"
	)
	fn := inflect.Camelize(label) + fmt.Sprint(ts)
	body := func(comment string) *jen.Statement {
		return jen.Func().Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("eq").Qual(dialectPkg, "ExecQuerier"),
		).Error().Block(
			jen.Comment(comment),
			jen.Return(jen.Id("eq").Dot("Exec").Call(
				jen.Id("ctx"),
				jen.Lit(""),
				jen.Index().Any().Values(),
				jen.Nil(),
			)),
		)
	}
	f := jen.NewFile(pkg)
	f.Commentf("%s returns the %s migration.", fn, name)
	f.Func().Id(fn).Params().Op("*").Qual(migratePkg, "Migration").Block(
		jen.Return(jen.Op("&").Qual(migratePkg, "Migration").Values(jen.Dict{
			jen.Id("Name"):      jen.Lit(name),
			jen.Id("Timestamp"): jen.Lit(int(ts)),
			jen.Id("Up"):        body("Statements executed when the migration is applied."),
			jen.Id("Down"):      body("Statements executed when the migration is rolled back."),
		})),
	)
	return f
}
