package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandon/mailpull/internal/email"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List folders on the mail server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		client := email.NewIMAPClient(cfg)
		client.SetLogger(logger)
		defer client.Close()

		folders, err := client.ListFolders()
		if err != nil {
			return err
		}

		for _, folder := range folders {
			fmt.Println(folder.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(foldersCmd)
}
