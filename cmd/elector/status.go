package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/elector"
)

func newStatusCmd(params *cliParams) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current holder of the lock key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}

			logger, zl, err := params.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			client, closeClient, err := params.newClient(ctx, cfg, logger, zl)
			if err != nil {
				return err
			}
			defer closeClient()

			pair, err := client.KVGet(ctx, cfg.Key)
			if err != nil {
				return err
			}

			owner := elector.Notification{Pair: pair}.Owner()
			_, _ = fmt.Fprintf(out, "key:   %s\nowner: %s\n", cfg.Key, owner)
			if pair != nil {
				_, _ = fmt.Fprintf(out, "value: %s\nindex: %d\n", pair.Value, pair.ModifyIndex)
			}

			return nil
		},
	}
}
