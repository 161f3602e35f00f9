package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brandon/mailpull/internal/archive"
	"github.com/brandon/mailpull/internal/email"
	"github.com/brandon/mailpull/internal/index"
	"github.com/brandon/mailpull/internal/poller"
)

var (
	fetchSince  string
	fetchDryRun bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Archive all messages received since a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := parseSince(fetchSince)
		if err != nil {
			return err
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		client := email.NewIMAPClient(cfg)
		client.SetLogger(logger)
		defer client.Close()

		writer, err := archive.NewWriter(cfg.AttachmentsDir, cfg.BodiesDir, cfg.MboxPath, logger)
		if err != nil {
			return err
		}
		writer.SetDryRun(fetchDryRun)

		idx, err := index.NewIndex(cfg.IndexPath, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
		store := index.NewStore(idx, logger)

		p := poller.New(cfg.Folder, client, writer, store, logger)
		count, err := p.FetchSince(since)
		if err != nil {
			return err
		}

		fmt.Printf("Archived %d messages since %s\n", count, since.Format("2006-01-02"))
		return nil
	},
}

// parseSince accepts a plain date or a full RFC 3339 timestamp. Plain dates
// are taken as midnight UTC.
func parseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--since is required")
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want YYYY-MM-DD or RFC 3339)", value)
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSince, "since", "", "Archive messages received on or after this date (YYYY-MM-DD)")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Log what would be written without writing files")
	fetchCmd.MarkFlagRequired("since") //nolint:errcheck
	rootCmd.AddCommand(fetchCmd)
}
