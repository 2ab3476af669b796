package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/basin-analysis/internal/archive"
	"github.com/joelkehle/basin-analysis/internal/basinanalysis"
)

type batchLine struct {
	ID     string                       `json:"id"`
	Status basinanalysis.PipelineStatus `json:"status,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

func batchCommand(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "batch <inputs.json>",
		Short: "Analyze many basins concurrently",
		Long:  "Run a JSON array of inputs, --concurrency at a time, printing one JSON line per analysis in input order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs []basinanalysis.PipelineInputs
			if err := readJSON(cmd.InOrStdin(), args[0], &inputs); err != nil {
				return err
			}
			pipeline, err := a.newPipeline(nil)
			if err != nil {
				return err
			}
			var store *archive.Store
			if save {
				if store, err = a.openArchive(); err != nil {
					return err
				}
				defer store.Close()
			}

			items, runErr := basinanalysis.NewBatchRunner(pipeline, a.cfg.Batch.Concurrency).Run(cmd.Context(), inputs)
			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for i, item := range items {
				line := batchLine{ID: item.Result.ID, Status: item.Result.Status}
				if line.ID == "" {
					line.ID = inputs[i].ID
				}
				if item.Err != nil {
					failed++
					line.Error = item.Err.Error()
				} else if store != nil {
					if err := store.Save(cmd.Context(), item.Result); err != nil {
						return err
					}
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			a.logger.Info("batch finished", zap.Int("analyses", len(items)), zap.Int("failed", failed))
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(items))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store every finished result in the archive")
	return cmd
}
