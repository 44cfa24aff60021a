package main

import (
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool",
	Long:  `Apply or roll back the embedded schema migrations. Use with 'up' or 'down' subcommands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigrate(cmd, true)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Long: `Roll back every migration.
WARNING: this drops all registration and payment data.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return cmd.Usage()
		}
		return runMigrate(cmd, false)
	},
}

func init() {
	migrateDownCmd.Flags().BoolP("yes", "y", false, "Confirm data loss")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrate(cmd *cobra.Command, up bool) error {
	log := zlog.Logger
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	repository, _, closeRepo, err := openRepository(cfg, &log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open storage")
		return err
	}
	defer closeRepo()

	if up {
		err = repository.MigrateUp(cmd.Context())
	} else {
		err = repository.MigrateDown(cmd.Context())
	}
	if err != nil {
		log.Error().Err(err).Bool("up", up).Msg("migration failed")
		return err
	}
	return nil
}
