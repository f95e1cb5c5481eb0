package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MarcoPoloResearchLab/carebook/internal/config"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carebook",
		Short: "Carebook health calendar and sync service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newImportCommand(), newExportCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("user-id", "", "User id for single-user installs")
	flags.String("session-token", "", "Session token identifying the signed-in user")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.String("remote-driver", defaults.GetString("remote.driver"), "Remote document store (memory, postgres)")
	flags.String("postgres-url", "", "PostgreSQL connection string for the postgres remote driver")
	flags.Duration("tombstone-ttl", defaults.GetDuration("sync.tombstone_ttl"), "How long deleted ids ignore remote documents")
	flags.String("rearm-schedule", defaults.GetString("reminders.rearm_schedule"), "Cron schedule for re-arming reminders")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "user.id", "user-id")
	bindFlag(cmd, "session.token", "session-token")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "remote.driver", "remote-driver")
	bindFlag(cmd, "remote.postgres_url", "postgres-url")
	bindFlag(cmd, "sync.tombstone_ttl", "tombstone-ttl")
	bindFlag(cmd, "reminders.rearm_schedule", "rearm-schedule")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	return viper.ReadInConfig()
}
