package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brandon/mailpull/internal/archive"
	"github.com/brandon/mailpull/internal/email"
	"github.com/brandon/mailpull/internal/index"
	"github.com/brandon/mailpull/internal/poller"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the mailbox at a fixed interval and archive new mail",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		interval := cfg.PollInterval
		if watchInterval > 0 {
			interval = watchInterval
		}

		client := email.NewIMAPClient(cfg)
		client.SetLogger(logger)
		defer client.Close()

		writer, err := archive.NewWriter(cfg.AttachmentsDir, cfg.BodiesDir, cfg.MboxPath, logger)
		if err != nil {
			return err
		}

		idx, err := index.NewIndex(cfg.IndexPath, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
		store := index.NewStore(idx, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := poller.New(cfg.Folder, client, writer, store, logger)
		if err := p.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (overrides POLL_INTERVAL)")
	rootCmd.AddCommand(watchCmd)
}
