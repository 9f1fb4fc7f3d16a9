package cli

import (
	"github.com/spf13/cobra"

	"github.com/netn10/learn-romanian/internal/sync"
	"github.com/netn10/learn-romanian/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the card collection over HTTP",
		Long:  "Start the JSON API. The server drains in-flight requests on interrupt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}

			srv := web.NewServer(db, sync.New(db, a.logger, a.cfg.Sources), a.logger, a.cfg)
			defer srv.Close()
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":5000", "Listen address")
	cmd.Flags().String("repos-dir", "repos", "Directory for cloned git sources")
	return cmd
}
