package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:4000"

func newRootCommand() *cobra.Command {
	var serverFlag string
	client := func() *apiClient { return newAPIClient(serverFlag) }

	rootCmd := &cobra.Command{
		Use:           "transcodectl",
		Short:         "Operate a transcoding_service instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := os.Getenv("TRANSCODECTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", server, "Base URL of the transcoding service")

	rootCmd.AddCommand(
		newSubmitCommand(client),
		newShowCommand(client),
		newListCommand(client),
		newLogsCommand(client),
		newCancelCommand(client),
		newDeleteCommand(client),
		newCleanCommand(client),
		newCountsCommand(client),
		newHealthCommand(client),
	)
	return rootCmd
}
