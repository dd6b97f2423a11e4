package cmd

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmehdipour/clipgate/internal/db"
	"github.com/jmehdipour/clipgate/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var skipClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		// multiStatements=true in the DSN lets each file run as one Exec
		err = applyMigrations(sqlDB, "mysql", func(_ string, body string) []string { return []string{body} }, log)
		if _, fkErr := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1"); fkErr != nil && err == nil {
			err = fmt.Errorf("enable fk checks: %w", fkErr)
		}
		if err != nil {
			return err
		}

		if !skipClickHouse {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer chDB.Close()

			// clickhouse-go runs one statement per Exec
			if err := applyMigrations(chDB, "clickhouse", func(_ string, body string) []string { return splitStatements(body) }, log); err != nil {
				return err
			}
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&skipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}

func applyMigrations(dbx *sqlx.DB, dir string, split func(name, body string) []string, log *zap.Logger) error {
	files, err := fs.Glob(migrations.FS, dir+"/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		body, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", f, err)
		}
		for _, stmt := range split(f, string(body)) {
			if _, err := dbx.Exec(stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", f, err)
			}
		}
		log.Info("migration applied", zap.String("file", f))
	}
	return nil
}

// splitStatements cuts a script on ";" line ends and drops "--" comment lines.
func splitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
