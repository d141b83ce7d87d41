package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "grocery",
	Short: "Grocery store backend",
	Long: `Grocery store backend serving the catalog, cart, checkout, reviews,
coupons, search and admin analytics over JSON/HTTP, plus an order
fulfilment API over gRPC.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}
