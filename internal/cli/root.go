// Package cli wires configuration, storage and the study session into the
// learnro command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/config"
	"github.com/netn10/learn-romanian/internal/storage"
)

// app holds state shared by every subcommand. It is populated by the root
// command's PersistentPreRunE.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
	db      *storage.DB
}

// store opens the database on first use.
func (a *app) store() (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.logger.WithField("path", a.cfg.Database.Path).Debug("Database opened")
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
	a.db = nil
}

// newRootCmd creates the root command for learnro.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "learnro",
		Short: "Study Romanian vocabulary with flashcards",
		Long: `Build a Romanian / English card collection and study it.

learnro can:
- Parse "romanian: english" word lists into cards
- Sync word lists from local directories and git repositories
- Run timed or shuffled study sessions with pronunciation
- Serve the card collection over a JSON API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: a.cfgFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML config file")
	pf.String("db", "learnro.db", "Path to the SQLite database file")
	pf.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newParseCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newCardsCmd(a))
	root.AddCommand(newSourceCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newStudyCmd(a))

	return root
}

// Execute runs the command tree with ctx and releases resources afterwards.
func Execute(ctx context.Context, args []string) error {
	a := &app{}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
