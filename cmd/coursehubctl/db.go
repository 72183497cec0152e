package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geocoder89/coursehub/internal/db"
	"github.com/geocoder89/coursehub/internal/security"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.NewPool(cmd.Context(), cfg.DBURL, 1)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the configured admin user if it does not exist",
	Long:  "Reads ADMIN_EMAIL, ADMIN_PASSWORD, ADMIN_FIRST_NAME and ADMIN_LAST_NAME.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}

		pool, err := db.NewPool(cmd.Context(), cfg.DBURL, 1)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		created, err := db.EnsureAdminUser(cmd.Context(), pool, cfg, security.NewPasswordHasher(cfg.BcryptCost))
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", cfg.AdminEmail)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", cfg.AdminEmail)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedAdminCmd)
}
