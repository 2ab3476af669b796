package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/archive"
	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
)

func runCommand(a *app) *cobra.Command {
	var (
		format       string
		save         bool
		fallbackFrom string
	)
	cmd := &cobra.Command{
		Use:   "run [inputs.json]",
		Short: "Analyze one basin",
		Long:  "Run every stage for one set of inputs read from a file, or stdin when the path is omitted or \"-\".",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			var in basinanalysis.PipelineInputs
			if err := readJSON(cmd.InOrStdin(), path, &in); err != nil {
				return err
			}
			pipeline, err := a.newPipeline(nil)
			if err != nil {
				return err
			}

			var store *archive.Store
			if save || fallbackFrom != "" {
				if store, err = a.openArchive(); err != nil {
					return err
				}
				defer store.Close()
			}
			if fallbackFrom != "" {
				fb, err := store.Fallback(cmd.Context(), fallbackFrom)
				if err != nil {
					return fmt.Errorf("fallback %s: %w", fallbackFrom, err)
				}
				in.Fallback = fb
			}

			res, err := pipeline.RunWithProgress(cmd.Context(), in, a.progress)
			if err != nil {
				return err
			}
			if save {
				if err := store.Save(cmd.Context(), res); err != nil {
					return err
				}
				a.logger.Info("analysis archived", zap.String("analysis_id", res.ID), zap.String("status", string(res.Status)))
			}
			return writeResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, markdown, html")
	cmd.Flags().BoolVar(&save, "save", false, "Store the result in the archive")
	cmd.Flags().StringVar(&fallbackFrom, "fallback-from", "", "Archived analysis whose records stand in for failed stages")
	return cmd
}

func (a *app) progress(stage, message string) {
	a.logger.Info(message, zap.String("stage", stage))
}

// readJSON decodes path, or r when path is "-".
func readJSON(r io.Reader, path string, v any) error {
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open inputs: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode inputs: %w", err)
	}
	return nil
}

func writeResult(w io.Writer, res basinanalysis.PipelineResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "markdown", "md":
		_, err := io.WriteString(w, basinanalysis.BuildMarkdown(res))
		return err
	case "html":
		page, err := basinanalysis.RenderHTML(res)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
