package migrate

import (
	"bufio"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/syssam/quarry"
)

// Annotations recognised in SQL migration files.
const (
	annotationUp             = "-- +migrate Up"
	annotationDown           = "-- +migrate Down"
	annotationStatementBegin = "-- +migrate StatementBegin"
	annotationStatementEnd   = "-- +migrate StatementEnd"
)

// Load reads the *.sql migrations at the root of fsys, in name order.
// Other files are ignored.
func Load(fsys fs.FS) ([]*Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var migrations []*Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		m, err := loadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	slices.SortFunc(migrations, less)
	return migrations, nil
}

func loadFile(fsys fs.FS, file string) (*Migration, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(strings.TrimSuffix(file, ".sql"), f)
}

// Parse reads an annotated SQL migration named name.
func Parse(name string, r io.Reader) (*Migration, error) {
	up, down, err := split(r)
	if err != nil {
		return nil, quarry.NewMigrationError(name, "parse", err)
	}
	return New(name, Exec(up...), Exec(down...))
}

type section int

const (
	sectionNone section = iota
	sectionUp
	sectionDown
)

// split returns the statements of the Up and Down sections.
func split(r io.Reader) (up, down []string, err error) {
	var (
		cur     = sectionNone
		seen    = map[section]bool{}
		inBlock bool
		buf     strings.Builder
		line    int
	)
	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if stmt == "" {
			return
		}
		switch cur {
		case sectionUp:
			up = append(up, stmt)
		case sectionDown:
			down = append(down, stmt)
		}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		text := sc.Text()
		trimmed := strings.TrimSpace(text)
		switch trimmed {
		case annotationUp, annotationDown:
			if inBlock {
				return nil, nil, quarry.Configf("migration", "line %d: section starts inside StatementBegin", line)
			}
			flush()
			cur = sectionUp
			if trimmed == annotationDown {
				cur = sectionDown
			}
			if seen[cur] {
				return nil, nil, quarry.Configf("migration", "line %d: duplicate %q", line, trimmed)
			}
			seen[cur] = true
			continue
		case annotationStatementBegin:
			if inBlock {
				return nil, nil, quarry.Configf("migration", "line %d: nested StatementBegin", line)
			}
			flush()
			inBlock = true
			continue
		case annotationStatementEnd:
			if !inBlock {
				return nil, nil, quarry.Configf("migration", "line %d: StatementEnd without StatementBegin", line)
			}
			flush()
			inBlock = false
			continue
		}
		if cur == sectionNone {
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				return nil, nil, quarry.Configf("migration", "line %d: statement outside of a section", line)
			}
			continue
		}
		if !inBlock && buf.Len() == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
		if !inBlock && strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if inBlock {
		return nil, nil, quarry.NewConfigError("migration", "StatementBegin without StatementEnd")
	}
	if !seen[sectionUp] {
		return nil, nil, quarry.NewConfigError("migration", "missing \"-- +migrate Up\" section")
	}
	flush()
	return up, down, nil
}
