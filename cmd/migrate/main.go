package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nzoagro/backend/internal/config"
)

const versionTimeFormat = "20060102150405"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{Use: "migrate"}
	rootCmd.AddCommand(
		createMigrationCommand(),
		migrateUpCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func createMigrationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [name]",
		Short: "create a pair of empty sql migration files",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			version := time.Now().Format(versionTimeFormat)
			up := fmt.Sprintf("%s/%s_%s.up.sql", cfg.MigrationsDir, version, args[0])
			down := fmt.Sprintf("%s/%s_%s.down.sql", cfg.MigrationsDir, version, args[0])

			if err := os.WriteFile(up, []byte{}, 0644); err != nil {
				log.Fatal(err)
			}
			if err := os.WriteFile(down, []byte{}, 0644); err != nil {
				log.Fatal(err)
			}
			fmt.Println("created:", up)
			fmt.Println("created:", down)
		},
	}
}

func migrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "apply all pending migrations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			// o driver pgx/v5 do golang-migrate registra o esquema pgx5://
			dsn := strings.Replace(cfg.PostgresDSN, "postgres://", "pgx5://", 1)
			m, err := migrate.New("file://"+cfg.MigrationsDir, dsn)
			if err != nil {
				log.Fatal(err)
			}
			err = m.Up()
			if err == migrate.ErrNoChange {
				fmt.Println("no change")
				return
			}
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println("migrated up")
		},
	}
}
