package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/trustrank/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션(goose)을 적용하거나 상태를 조회합니다.

Example:
  go run ./cmd/trustrank migrate up
  go run ./cmd/trustrank migrate status`,
}

var (
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "미적용 마이그레이션 모두 적용",
		RunE:  runMigrateUp,
	}

	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "마이그레이션 상태 조회",
		RunE:  runMigrateStatus,
	}
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// openDatabase connects without building the full app (Redis not needed)
func openDatabase() (*database.DB, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(cmd.Context())
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if len(applied) == 0 {
		PrintSuccess("Schema is up to date")
		return nil
	}
	for _, v := range applied {
		fmt.Printf("   applied %05d\n", v)
	}
	PrintSuccess(fmt.Sprintf("Applied %d migration(s)", len(applied)))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := db.MigrationStatuses(cmd.Context())
	if err != nil {
		return err
	}

	PrintTableHeader([]string{"Version", "Applied", "Source"}, []int{8, 8, 30})
	for _, s := range statuses {
		applied := "no"
		if s.Applied {
			applied = "yes"
		}
		PrintTableRow([]string{fmt.Sprintf("%05d", s.Version), applied, s.Source}, []int{8, 8, 30})
	}
	return nil
}
