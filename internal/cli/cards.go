package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/listquery"
	"github.com/netn10/learn-romanian/internal/storage"
)

func newCardsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage cards",
	}

	cmd.AddCommand(newCardsListCmd(a))
	cmd.AddCommand(newCardsAddCmd(a))
	cmd.AddCommand(newCardsDeleteCmd(a))
	cmd.AddCommand(newCardsTagsCmd(a))

	return cmd
}

func newCardsListCmd(a *app) *cobra.Command {
	var (
		filter   string
		orderBy  string
		search   string
		tags     []string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		Long: `List cards, newest first by default.

--filter takes an expression such as
  tag in ['food', 'drinks'] && romanian.startsWith('p')
and --order-by a list such as "romanian asc, created_at desc".
A page size of 0 lists every match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 || pageSize < 0 {
				return fmt.Errorf("page must be >= 1 and page size >= 0")
			}
			q := storage.CardQuery{Search: search, Tags: tags, Page: page, PageSize: pageSize}
			if err := listquery.Bind(filter, orderBy, &q); err != nil {
				return err
			}

			db, err := a.store()
			if err != nil {
				return err
			}
			cards, total, err := db.ListCards(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list cards: %w", err)
			}

			out := cmd.OutOrStdout()
			printCards(out, cards)
			fmt.Fprintf(out, "%d of %d cards\n", len(cards), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Filter expression")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "Sort order")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Substring to match on either side")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only cards with any of these tags")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Cards per page")
	return cmd
}

func newCardsAddCmd(a *app) *cobra.Command {
	var (
		romanian string
		english  string
		tags     []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			card, err := db.CreateCard(cmd.Context(), domain.ParsedPair{Romanian: romanian, English: english}, tags)
			if err != nil {
				return fmt.Errorf("add card: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card created: %s\n", card.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&romanian, "romanian", "", "Romanian text (required)")
	cmd.Flags().StringVar(&english, "english", "", "English text (required)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags")
	_ = cmd.MarkFlagRequired("romanian")
	_ = cmd.MarkFlagRequired("english")
	return cmd
}

func newCardsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			if err := db.DeleteCard(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete card %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card deleted: %s\n", args[0])
			return nil
		},
	}
}

func newCardsTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with their card counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			tags, err := db.ListTags(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range tags {
				fmt.Fprintf(w, "%s\t%d\n", t.Tag, t.Count)
			}
			return w.Flush()
		},
	}
}

func printCards(out io.Writer, cards []domain.Card) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROMANIAN\tENGLISH\tTAGS")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Romanian, c.English, strings.Join(c.Tags, ","))
	}
	_ = w.Flush()
}
