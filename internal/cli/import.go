package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/storage"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		tags            []string
		allowDuplicates bool
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Add the cards of a word list",
		Long: `Parse a word list and store every pair as a card.

Pairs whose Romanian text matches an existing card (ignoring case, spacing
and cedilla / comma-below differences) are skipped unless --allow-duplicates
is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := readPairs(cmd, args[0])
			if err != nil {
				return err
			}
			if len(pairs) == 0 {
				return fmt.Errorf("no valid card pairs found in %s", args[0])
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Would import %d pairs\n", len(pairs))
				return nil
			}

			db, err := a.store()
			if err != nil {
				return err
			}
			res, err := db.BulkCreate(cmd.Context(), pairs, storage.BulkOptions{
				SkipDuplicates: a.cfg.Import.SkipDuplicates && !allowDuplicates,
				Tags:           tags,
			})
			if err != nil {
				return fmt.Errorf("import cards: %w", err)
			}

			printImport(out, res)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag every imported card (repeatable)")
	cmd.Flags().BoolVar(&allowDuplicates, "allow-duplicates", false, "Keep pairs whose Romanian text already exists")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse only, store nothing")
	return cmd
}

func printImport(out io.Writer, res *domain.ImportResult) {
	fmt.Fprintf(out, "Successfully added %d cards (%d skipped, %d parsed)\n",
		res.AddedCount, res.SkippedCount, res.TotalParsed)
}
