package commands

import (
	"candle-shop/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the storefront tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.InitDB(cfg.DB, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.Migrate(cmd.Context(), db, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
