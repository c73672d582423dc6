package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dosewatch/internal/classifier"
	"github.com/Veraticus/dosewatch/internal/cli"
	"github.com/Veraticus/dosewatch/internal/common"
	"github.com/Veraticus/dosewatch/internal/service"
)

func sourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage the classifier source",
	}
	cmd.AddCommand(sourceSetCmd())
	cmd.AddCommand(sourceShowCmd())
	return cmd
}

func sourceSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <manifest-url>",
		Short: "Validate and save the classifier manifest URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			loader := classifier.NewHTTPLoader(cfg.Detection.ClassifierTimeout, service.RetryOptions{})
			return setSource(cmd.Context(), cmd.OutOrStdout(), store, loader, args[0])
		},
	}
}

// setSource loads url to prove it works, then persists it.
func setSource(ctx context.Context, out io.Writer, store service.BlobStore, loader service.ClassifierLoader, url string) error {
	url = strings.TrimSpace(url)
	cls, err := loader.Load(ctx, url)
	if err != nil {
		return common.NewUserError("Classifier could not be loaded", err)
	}
	if err := store.Put(ctx, service.KeyClassifierURL, []byte(url)); err != nil {
		return fmt.Errorf("failed to save classifier source: %w", err)
	}

	labels := make([]string, 0, len(cls.Labels()))
	for _, l := range cls.Labels() {
		labels = append(labels, string(l))
	}
	writeOut(out, "%s\n", cli.FormatSuccess("Classifier source saved"))
	writeOut(out, "  labels: %s\n", strings.Join(labels, ", "))
	return nil
}

func sourceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved classifier manifest URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			data, err := store.Get(cmd.Context(), service.KeyClassifierURL)
			switch {
			case errors.Is(err, common.ErrNotFound):
				if cfg.Detection.ClassifierURL != "" {
					writeOut(out, "%s (from configuration)\n", cfg.Detection.ClassifierURL)
					return nil
				}
				writeOut(out, "%s\n", cli.FormatInfo("No classifier source set. Use: dosewatch source set <url>"))
				return nil
			case err != nil:
				return err
			}
			writeOut(out, "%s\n", string(data))
			return nil
		},
	}
}
