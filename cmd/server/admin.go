package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.logger.Info("migrate_complete")
		return nil
	},
}

var adminInput service.RegisterInput

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		user, err := a.authService(a.deps(nil)).CreateAdmin(cmd.Context(), adminInput)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		a.logger.Info("admin_created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminInput.Username, "username", "admin", "Admin username")
	f.StringVar(&adminInput.Email, "email", "", "Admin email address")
	f.StringVar(&adminInput.Password, "password", "", "Admin password (at least 8 characters)")
	f.StringVar(&adminInput.FirstName, "first-name", "Store", "First name")
	f.StringVar(&adminInput.LastName, "last-name", "Admin", "Last name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
