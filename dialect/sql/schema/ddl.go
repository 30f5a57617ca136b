package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	modelschema "github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

// DefaultColumnType is used for types missing from TypeMapping.
const DefaultColumnType = "VARCHAR(255)"

// TypeMapping maps field types to column types.
var TypeMapping = map[field.Type]string{
	field.TypeString:    "VARCHAR(255)",
	field.TypeText:      "TEXT",
	field.TypeInt:       "INT",
	field.TypeFloat:     "FLOAT",
	field.TypeBool:      "TINYINT(1)",
	field.TypeDate:      "DATE",
	field.TypeDateTime:  "DATETIME",
	field.TypeTimestamp: "TIMESTAMP",
}

// mysqlTableOptions are appended to every MySQL CREATE TABLE.
const mysqlTableOptions = "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"

// ColumnType returns the column type of fd under the given dialect.
func ColumnType(fd *field.Descriptor, name string) string {
	if t, ok := fd.SchemaType[name]; ok && t != "" {
		return t
	}
	if t, ok := TypeMapping[fd.Type]; ok {
		return t
	}
	return DefaultColumnType
}

// CreateTable returns the CREATE TABLE statement of a definition.
func CreateTable(def *modelschema.Definition, name string) (string, error) {
	if err := checkDialect(name); err != nil {
		return "", err
	}
	if def.Table() == "" {
		return "", quarry.NewConfigError("schema", "definition has no table name")
	}
	cols := []string{primaryKey(def.PrimaryKey(), name)}
	for _, fd := range def.Fields() {
		if fd.Name == def.PrimaryKey() {
			continue
		}
		cols = append(cols, column(def, fd, name))
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(def.Table())
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(")")
	if name == dialect.MySQL {
		b.WriteString(" ")
		b.WriteString(mysqlTableOptions)
	}
	return b.String(), nil
}

// CreateHistoryTable returns the CREATE TABLE statement of the migration
// history table.
func CreateHistoryTable(table, name string) (string, error) {
	if err := checkDialect(name); err != nil {
		return "", err
	}
	if table == "" {
		return "", quarry.NewConfigError("schema", "history table has no name")
	}
	id := "id INT AUTO_INCREMENT PRIMARY KEY"
	if name == dialect.SQLite {
		id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s, name VARCHAR(255) NOT NULL UNIQUE, timestamp BIGINT NOT NULL, executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)",
		table, id,
	), nil
}

func checkDialect(name string) error {
	switch name {
	case dialect.MySQL, dialect.SQLite:
		return nil
	}
	return quarry.NewConfigError("dialect", fmt.Sprintf("unsupported dialect %q", name))
}

func primaryKey(column, name string) string {
	if name == dialect.SQLite {
		return column + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return column + " BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY"
}

func column(def *modelschema.Definition, fd *field.Descriptor, name string) string {
	var b strings.Builder
	b.WriteString(fd.Name)
	b.WriteString(" ")
	b.WriteString(ColumnType(fd, name))
	switch {
	case def.Timestamps() && fd.Name == modelschema.CreatedAt:
		b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
	case def.Timestamps() && fd.Name == modelschema.UpdatedAt:
		b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
		if name == dialect.MySQL {
			b.WriteString(" ON UPDATE CURRENT_TIMESTAMP")
		}
	default:
		if !fd.Nullable {
			b.WriteString(" NOT NULL")
		}
		if fd.Default != nil {
			b.WriteString(" DEFAULT ")
			b.WriteString(EscapeDefault(fd.Default))
		}
	}
	if fd.Comment != "" && name == dialect.MySQL {
		b.WriteString(" COMMENT ")
		b.WriteString(quote(fd.Comment))
	}
	return b.String()
}

// EscapeDefault renders a literal default value for DDL.
func EscapeDefault(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quote(v.Format(time.DateTime))
	default:
		return fmt.Sprint(v)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
