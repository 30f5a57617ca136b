// Package schema generates the DDL for model definitions and the migration
// history table, and validates definitions before they are registered.
//
// Column types come from a fixed mapping table; there is no diffing or
// introspection of existing tables. Every statement uses
// CREATE TABLE IF NOT EXISTS and is safe to issue repeatedly.
package schema
