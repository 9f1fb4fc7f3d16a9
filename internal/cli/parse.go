package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/domain"
	"github.com/netn10/learn-romanian/internal/parser"
)

func newParseCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Show the cards a word list would produce",
		Long: `Parse "romanian: english" lines without touching the database.

Alternatives separated by "/" and short comma lists also yield one card per
form after the full line. Use "-" to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := readPairs(cmd, args[0])
			if err != nil {
				return err
			}
			a.logger.WithField("pairs", len(pairs)).Debug("Parsed word list")

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(pairs)
			}
			for _, p := range pairs {
				fmt.Fprintf(out, "%s: %s\n", p.Romanian, p.English)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Parsed %d pairs\n", len(pairs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print pairs as JSON")
	return cmd
}

// readPairs parses path, or standard input when path is "-".
func readPairs(cmd *cobra.Command, path string) ([]domain.ParsedPair, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open word list: %w", err)
		}
		defer f.Close()
		r = f
	}

	pairs, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if pairs == nil {
		pairs = []domain.ParsedPair{}
	}
	return pairs, nil
}
