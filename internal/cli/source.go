package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/sync"
)

func newSourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage word-list sources",
		Long:  "Register local directories or git repositories whose word lists are synced into cards.",
	}

	cmd.AddCommand(newSourceAddCmd(a))
	cmd.AddCommand(newSourceListCmd(a))
	cmd.AddCommand(newSourceRemoveCmd(a))

	return cmd
}

func newSourceAddCmd(a *app) *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "add <path|git-url>",
		Short: "Register a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceType != "" && sourceType != domain.SourceLocal && sourceType != domain.SourceGit {
				return fmt.Errorf("type must be %q or %q", domain.SourceLocal, domain.SourceGit)
			}
			db, err := a.store()
			if err != nil {
				return err
			}

			existing, err := db.FindSourceByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("source already exists with id %d", existing.ID)
			}

			id, err := db.InsertSource(cmd.Context(), args[0], sourceType)
			if err != nil {
				return fmt.Errorf("add source: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source added: %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceType, "type", "", "local or git (guessed from the path when empty)")
	return cmd
}

func newSourceListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			sources, err := db.GetAllSources(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tPATH\tLAST SCANNED")
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned != nil {
					scanned = s.LastScanned.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
			}
			return w.Flush()
		},
	}
}

func newSourceRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source-id>",
		Short: "Remove a source; its cards are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			db, err := a.store()
			if err != nil {
				return err
			}
			if err := db.DeleteSource(cmd.Context(), id); err != nil {
				return fmt.Errorf("remove source %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source removed: %d\n", id)
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every source into cards",
		Long: `Pull git sources, parse every word list and add new cards.

Cards of a source whose Romanian text no longer appears in any of its files
are deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			reports, err := sync.New(db, a.logger, a.cfg.Sources).RunSync(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tFILES\tADDED\tSKIPPED\tDELETED\tERROR")
			failed := 0
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", r.Path, r.Files, r.Added, r.Skipped, r.Orphaned, r.Error)
				if r.Error != "" {
					failed++
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sources failed to sync", failed, len(reports))
			}
			return nil
		},
	}

	cmd.Flags().String("repos-dir", "repos", "Directory for cloned git sources")
	return cmd
}
