package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/vearutop/partialcache"
)

func renderCmd() *cobra.Command {
	var (
		data    string
		repeat  int
		bypass  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "render VIEW",
		Short: "Render a view to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := parseBindings(data)
			if err != nil {
				return err
			}

			return withApp(cmd, nil, func(ctx context.Context, a *app) error {
				if bypass {
					ctx = partialcache.WithBypass(ctx)
				}

				for i := 0; i < repeat; i++ {
					rctx := ctx
					if refresh && i == 0 {
						rctx = partialcache.WithRefresh(ctx)
					}

					out, err := a.views.Render(rctx, args[0], bindings, nil)
					if err != nil {
						return err
					}

					fmt.Fprintln(cmd.OutOrStdout(), out)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON object with view bindings")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Number of renders")
	cmd.Flags().BoolVar(&bypass, "bypass", false, "Render fragments without cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-render cached fragments on first render")

	return cmd
}

// parseBindings decodes JSON object, empty input gives nil bindings.
func parseBindings(data string) (map[string]interface{}, error) {
	if data == "" {
		return nil, nil
	}

	if !gjson.Valid(data) {
		return nil, errors.New("invalid JSON in data")
	}

	bindings, ok := gjson.Parse(data).Value().(map[string]interface{})
	if !ok {
		return nil, errors.New("data must be a JSON object")
	}

	return bindings, nil
}
