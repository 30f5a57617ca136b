// Package field provides fluent builders for declaring model attributes.
//
// Every attribute has a name, a type from a fixed set, a nullable flag and
// an optional literal default:
//
//	field.String("email")
//	field.Text("bio").Nullable()
//	field.Int("age").Default(0)
//	field.Float("score")
//	field.Bool("active").Default(true)
//	field.Date("birthday").Nullable()
//	field.DateTime("published_at").Nullable()
//	field.Timestamp("seen_at")
//
// # Value Checking
//
// A Descriptor checks values written by application code strictly and
// converts values read back from the database leniently:
//
//	fd := field.Int("age").Descriptor()
//	v, err := fd.Check(int32(7))   // int64(7), nil
//	_, err = fd.Check("7")         // error: kind mismatch
//	v, err = fd.Convert([]byte("7")) // int64(7), nil
//
// Check and Convert normalise integers to int64, floats to float64 and
// temporal values to time.Time, so two values holding the same data
// compare equal.
//
// # Dialect Overrides
//
// The column type emitted in DDL can be overridden per dialect:
//
//	field.String("data").SchemaType(map[string]string{
//	    dialect.MySQL: "JSON",
//	})
package field
