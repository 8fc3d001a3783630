package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/migrations"
)

// migrationFiles is the embedded migration set unless dir names a directory.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// withPool runs fn against a pool built from the environment configuration.
func withPool(cmd *cobra.Command, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func migrateCmd() *cobra.Command {
	var schema, dir string
	var target int

	root := &cobra.Command{Use: "migrate", Short: "Apply or inspect schema migrations"}
	root.PersistentFlags().StringVar(&schema, "schema", db.SchemaFor("default"), "schema to migrate")
	root.PersistentFlags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd, func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := db.NewMigrator(pool, migrationFiles(dir)).UpTo(ctx, schema, target)
				if err != nil {
					return fmt.Errorf("%s: %d applied before failure: %w", schema, n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migration(s) applied\n", schema, n)
				return nil
			})
		},
	}
	up.Flags().IntVar(&target, "to", 0, "stop after this version (0 applies everything)")

	status := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether the schema has them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd, func(ctx context.Context, pool *pgxpool.Pool) error {
				rows, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx, schema)
				if err != nil {
					return err
				}
				return printStatus(cmd, schema, rows)
			})
		},
	}

	root.AddCommand(up, status)
	return root
}

func printStatus(cmd *cobra.Command, schema string, rows []db.MigrationStatus) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "schema %s\n\n", schema)
	fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED")
	for _, r := range rows {
		when := "pending"
		if r.AppliedAt != nil {
			when = r.AppliedAt.UTC().Format("2006-01-02 15:04 MST")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.Version, r.Name, when)
	}
	return w.Flush()
}

func tenantCmd() *cobra.Command {
	root := &cobra.Command{Use: "tenant", Short: "Provision clinics"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema with every migration applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd, func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := db.CreateTenantSchema(ctx, pool, name, migrations.FS); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "clinic %s ready in schema %s\n", name, db.SchemaFor(name))
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "clinic identifier (letters, digits, underscore)")
	_ = create.MarkFlagRequired("name")

	root.AddCommand(create)
	return root
}
