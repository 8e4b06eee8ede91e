package supportnotes

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supportnotes/supportnotes/internal/logger"
	"github.com/supportnotes/supportnotes/pkg/models"
)

// NewRootCommand builds the supportnotes command tree. Settings come from flags, then
// SUPPORTNOTES_* environment variables, then an optional config file.
func NewRootCommand() (*cobra.Command, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}

	var configFile string
	root := &cobra.Command{
		Use:   "supportnotes",
		Short: "Support notes about students, with replies, over a pluggable document store",
		Long: `supportnotes keeps short notes about students for their teachers in three
collections (normal, stopped students, permanent) and serves them over a JSON API.

Backends: memory (optionally snapshotted to a file), surrealdb, postgres, mongo.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", configFile, err)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("backend", BackendMemory, "Store backend: memory, surrealdb, postgres or mongo")
	flags.String("memory-file", "", "Snapshot file for the memory backend")
	flags.Bool("read-only", false, "Reject every write")
	flags.String("log-level", "info", "Log level")
	flags.Bool("log-pretty", false, "Human-readable log output")
	for key, flag := range map[string]string{
		"backend":     "backend",
		"memory.file": "memory-file",
		"read_only":   "read-only",
		"log.level":   "log-level",
		"log.pretty":  "log-pretty",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), v, func(app *App) error {
				if err := app.Run(cmd.Context()); err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
		},
	}
	runCmd.Flags().String("port", "8080", "Server port")
	if err := v.BindPFlag("server.port", runCmd.Flags().Lookup("port")); err != nil {
		return nil, err
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the store's tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), v, func(app *App) error {
				if err := app.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				return nil
			})
		},
	}

	var username, displayName, password string
	addUserCmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a sign-in account or reset its password",
		Example: `  supportnotes adduser --username sara --name "Sara K." --password secret1
  supportnotes adduser --username omar@school.org --password another1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), v, func(app *App) error {
				return app.AddUser(cmd.Context(), username, displayName, password)
			})
		},
	}
	addUserCmd.Flags().StringVar(&username, "username", "", "Username or email address")
	addUserCmd.Flags().StringVar(&displayName, "name", "", "Display name")
	addUserCmd.Flags().StringVar(&password, "password", "", "Password, at least 6 characters")
	_ = addUserCmd.MarkFlagRequired("username")
	_ = addUserCmd.MarkFlagRequired("password")

	var collection string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the notes of a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), v, func(app *App) error {
				return app.ListNotes(cmd.Context(), cmd.OutOrStdout(), models.Collection(collection))
			})
		},
	}
	listCmd.Flags().StringVar(&collection, "collection", "", "Collection name (default collection when empty)")

	root.AddCommand(runCmd, migrateCmd, addUserCmd, listCmd)
	return root, nil
}

// withApp loads the configuration, builds the logger and the app, and runs fn.
func withApp(ctx context.Context, v *viper.Viper, fn func(*App) error) error {
	config, err := LoadConfig(v)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	build := logger.New().WithLevel(config.LogLevel).Pretty(config.LogPretty)
	if config.LogFile != "" {
		build = build.FromPath(config.LogFile)
	}
	logData, err := build.Make()
	if err != nil {
		return err
	}
	defer logData.Close()

	app, err := New(ctx, config, logData.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return fn(app)
}
