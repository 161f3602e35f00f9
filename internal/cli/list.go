package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandon/mailpull/internal/index"
)

var (
	listSince string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived messages from the local index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		idx, err := index.NewIndex(cfg.IndexPath, logger)
		if err != nil {
			return err
		}
		defer idx.Close()
		store := index.NewStore(idx, logger)

		opts := index.SearchOptions{
			FolderPath: &cfg.Folder,
			Limit:      listLimit,
		}
		if listSince != "" {
			since, err := parseSince(listSince)
			if err != nil {
				return err
			}
			opts.DateFrom = &since
		}

		messages, err := store.Search(opts)
		if err != nil {
			return err
		}

		if len(messages) == 0 {
			fmt.Println("No archived messages")
			return nil
		}

		for _, msg := range messages {
			fmt.Printf("%s  %-30s  %s (%d attachments)\n",
				msg.Date.Format("2006-01-02 15:04"),
				truncate(msg.SenderEmail, 30),
				truncate(msg.Subject, 60),
				msg.AttachmentCount,
			)
		}
		return nil
	},
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "Only list messages received on or after this date (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum number of messages to list")
	rootCmd.AddCommand(listCmd)
}
