// Package cli implements storectl, the operator CLI for schema migrations,
// seeding, user provisioning and session cleanup.
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App holds what the commands share. Tests fill Config, DB and Log up front;
// otherwise they are resolved lazily from the environment and flags.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Log    *zap.Logger
	Out    io.Writer

	v *viper.Viper
}

func (a *App) init() error {
	if a.Out == nil {
		a.Out = os.Stdout
	}

	if a.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if url := a.v.GetString("database-url"); url != "" {
			cfg.Database.URL = url
		}
		if backend := a.v.GetString("session-backend"); backend != "" {
			cfg.Session.Backend = strings.ToLower(backend)
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if level := a.v.GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		a.Config = cfg
	}

	if a.Log == nil {
		log, err := logger.New(a.Config.Log.Env, a.Config.Log.Level)
		if err != nil {
			return err
		}
		a.Log = log
	}

	return nil
}

func (a *App) database() (*sql.DB, error) {
	if a.DB != nil {
		return a.DB, nil
	}
	db, err := database.NewConnection(&a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	return db, nil
}

func (a *App) close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
}

func NewRootCmd(app *App) *cobra.Command {
	app.v = viper.New()

	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the storefront database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}

	root.PersistentFlags().String("database-url", "", "postgres connection string (overrides DATABASE_URL)")
	root.PersistentFlags().String("session-backend", "", "session backend: memory|postgres|redis")
	root.PersistentFlags().String("log-level", "", "log level")

	_ = app.v.BindPFlag("database-url", root.PersistentFlags().Lookup("database-url"))
	_ = app.v.BindPFlag("session-backend", root.PersistentFlags().Lookup("session-backend"))
	_ = app.v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	app.v.SetEnvPrefix("STORECTL")
	app.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	app.v.AutomaticEnv()

	root.AddCommand(
		newMigrateCmd(app),
		newSeedCmd(app),
		newUserCmd(app),
		newSessionsCmd(app),
		newProductsCmd(app),
	)

	return root
}

func Execute() error {
	app := &App{}
	defer app.close()
	return NewRootCmd(app).Execute()
}
