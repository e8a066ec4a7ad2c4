// Package main provides a tool to render and serve views with cached fragments.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bool64/stats"
	"github.com/spf13/cobra"
)

var (
	configFile string
	viewsDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "partialcache",
		Short: "Render views with cached fragments",
		Long:  "Render, check and serve html/template views using @cache, @cacheIf and @cacheWhen directives",

		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML settings file")
	rootCmd.PersistentFlags().StringVar(&viewsDir, "views", "", "Directory with views")

	rootCmd.AddCommand(renderCmd(), checkCmd(), forgetCmd(), serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings reads settings file, environment and persistent flags.
func loadSettings(cmd *cobra.Command) (*Settings, error) {
	s, err := LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err := s.LoadFromEnv(); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("views") {
		s.Views = viewsDir
	}

	return s, nil
}

// withApp runs fn with an app and closes it afterwards.
func withApp(cmd *cobra.Command, tracker stats.Tracker, fn func(ctx context.Context, a *app) error) (err error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, s, NewLogger(cmd.ErrOrStderr()), tracker)
	if err != nil {
		return err
	}

	defer func() {
		if clErr := a.Close(ctx); clErr != nil && err == nil {
			err = clErr
		}
	}()

	return fn(ctx, a)
}
