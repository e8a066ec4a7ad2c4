package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func forgetCmd() *cobra.Command {
	var vary string

	cmd := &cobra.Command{
		Use:   "forget VIEW",
		Short: "Delete cached fragment from store",
		Long:  "Delete cached fragment from redis store or from memory dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app) error {
				if err := a.directive.Forget(ctx, args[0], vary); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "forgot", a.directive.Key(args[0], vary))

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&vary, "vary", "", "Fragment variation")

	return cmd
}
