// Package migrate applies and reverts ordered schema migrations and records
// them in a history table.
//
// A migration is a named unit with an Up and a Down body. Migrations are
// loaded from a directory of SQL files, defined in Go, or both:
//
//	r := migrate.NewRunner(drv,
//	    migrate.WithDir(os.DirFS("migrations")),
//	    migrate.WithMigrations(createUsers()),
//	    migrate.WithLogger(logger),
//	)
//	report, err := r.Migrate(ctx)
//
// SQL files are named <timestamp>_<name>.sql and split into sections:
//
//	-- +migrate Up
//	CREATE TABLE users (id INT);
//
//	-- +migrate Down
//	DROP TABLE users;
//
// Statements end with a semicolon at the end of a line. A statement whose
// body contains semicolons is wrapped in StatementBegin and StatementEnd
// markers:
//
//	-- +migrate StatementBegin
//	CREATE TRIGGER touch AFTER UPDATE ON users BEGIN
//	    UPDATE users SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
//	END;
//	-- +migrate StatementEnd
//
// Every migration runs on its own pooled connection inside one transaction
// that executes the body and writes or deletes the history row. A failure
// rolls the transaction back and stops the run. Note that MySQL commits DDL
// statements implicitly, so only the history row is transactional there.
package migrate
