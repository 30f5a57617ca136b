package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/migrate"
)

func (a *app) createMigrationCmd() *cobra.Command {
	var asGo bool
	cmd := &cobra.Command{
		Use:   "create-migration <name>",
		Short: "Create an empty migration file",
		Long: `Create an empty migration named <timestamp>_<name> in the migrations
directory. The name is normalised to snake case. With --go a Go file
declaring a *migrate.Migration constructor is written instead of SQL.`,
		Example: `  quarry create-migration create_users
  quarry create-migration AddPostsIndex --dir db/migrations --go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := migrate.FormatSQL
			if asGo {
				format = migrate.FormatGo
			}
			path, err := migrate.Scaffold(a.cfg.Migrations.Dir, args[0], a.now(), format)
			if err != nil {
				return err
			}
			a.logger.Info("created migration", "path", path)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	cmd.Flags().BoolVar(&asGo, "go", false, "generate a Go migration instead of SQL")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Long: `Apply every pending migration in timestamp order. Each migration and its
history record are committed in one transaction; the run stops at the
first failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				report, err := r.Migrate(cmd.Context())
				if err == nil && len(report.Steps) == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
					return err
				}
				if werr := printSteps(cmd.OutOrStdout(), report, migrate.StateApplied); werr != nil && err == nil {
					err = werr
				}
				return err
			})
		},
	}
}

func (a *app) rollbackCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recently applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				report, err := r.Rollback(cmd.Context(), steps)
				if err == nil && len(report.Steps) == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return err
				}
				if werr := printSteps(cmd.OutOrStdout(), report, migrate.StateReverted); werr != nil && err == nil {
					err = werr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if output != "text" && output != "yaml" {
				return quarry.Configf("output", "unsupported format %q (want text or yaml)", output)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				report, err := r.Status(cmd.Context())
				if err != nil {
					return err
				}
				if output == "yaml" {
					return printStatusYAML(cmd.OutOrStdout(), report)
				}
				return printStatus(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text|yaml)")
	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// printSteps writes one line per step that reached state done or failed.
func printSteps(w io.Writer, report *migrate.Report, done migrate.State) error {
	for _, s := range report.Steps {
		var err error
		switch s.State {
		case done:
			_, err = fmt.Fprintf(w, "%-8s %s (%s)\n", s.State, s.Name, s.Duration.Round(time.Millisecond))
		case migrate.StateFailed:
			_, err = fmt.Fprintf(w, "%-8s %s: %v\n", s.State, s.Name, s.Err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func printStatus(w io.Writer, report *migrate.Report) error {
	if len(report.Steps) == 0 {
		_, err := fmt.Fprintln(w, "no migrations")
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"State", "Migration", "Note"})
	for _, s := range report.Steps {
		note := ""
		if s.Err != nil {
			note = s.Err.Error()
		}
		t.AppendRow(table.Row{s.State, s.Name, note})
	}
	t.Render()
	return nil
}

// statusEntry is the YAML form of a status step.
type statusEntry struct {
	Name      string `yaml:"name"`
	Timestamp int64  `yaml:"timestamp"`
	State     string `yaml:"state"`
	Error     string `yaml:"error,omitempty"`
}

type statusDoc struct {
	RunID      string        `yaml:"run_id"`
	Migrations []statusEntry `yaml:"migrations"`
}

func printStatusYAML(w io.Writer, report *migrate.Report) error {
	doc := statusDoc{RunID: report.RunID.String(), Migrations: make([]statusEntry, 0, len(report.Steps))}
	for _, s := range report.Steps {
		e := statusEntry{Name: s.Name, Timestamp: s.Timestamp, State: string(s.State)}
		if s.Err != nil {
			e.Error = s.Err.Error()
		}
		doc.Migrations = append(doc.Migrations, e)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
