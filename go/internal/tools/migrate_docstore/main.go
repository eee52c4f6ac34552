package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/emdrtap/go/internal/dbconfig"
	"github.com/spf13/cobra"
)

// Every statement must be safe to run again.
var migrations = []struct {
	name string
	sql  string
}{
	{"create session_documents", `
        CREATE TABLE IF NOT EXISTS session_documents (
            key        TEXT PRIMARY KEY,
            fields     JSONB,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`},
	{"index session_documents.updated_at", `
        CREATE INDEX IF NOT EXISTS session_documents_updated_at_idx
            ON session_documents (updated_at)`},
}

const pruneStale = `DELETE FROM session_documents WHERE updated_at < $1`

type options struct {
	dsn        string
	pruneAfter time.Duration
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "migrate_docstore",
		Short:        "Prepare the Postgres session document table",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.dsn == "" {
				opts.dsn = os.Getenv("EMDRTAP_PG_DSN")
			}
			if opts.dsn == "" {
				opts.dsn = dbconfig.NewConfigFromEnv().DSN()
			}
			return run(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Postgres DSN (default EMDRTAP_PG_DSN, then DB_* variables)")
	cmd.Flags().DurationVar(&opts.pruneAfter, "prune-after", 0, "delete documents not written for this long (0 keeps everything)")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options) error {
	if opts.pruneAfter < 0 {
		return fmt.Errorf("prune-after must not be negative")
	}

	pool, err := pgxpool.New(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		cmd.Printf("applied: %s\n", m.name)
	}

	if opts.pruneAfter > 0 {
		cutoff := time.Now().Add(-opts.pruneAfter)
		tag, err := pool.Exec(ctx, pruneStale, cutoff)
		if err != nil {
			return fmt.Errorf("prune stale documents: %w", err)
		}
		cmd.Printf("pruned %d documents last written before %s\n", tag.RowsAffected(), cutoff.Format(time.RFC3339))
	}

	var total int64
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM session_documents`).Scan(&total); err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	cmd.Printf("done. session documents: %d\n", total)
	return nil
}
