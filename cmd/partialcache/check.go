package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile all views and report errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(ctx context.Context, a *app) error {
				if err := a.views.Compile(ctx); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "views are valid")

				return nil
			})
		},
	}
}
