package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/duragraph/duragraph/internal/app"
	"github.com/duragraph/duragraph/internal/config"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/processors"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/infrastructure/storage"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
)

type runSummary struct {
	BatchID  string        `json:"batch_id"`
	CanvasID string        `json:"canvas_id"`
	Finished bool          `json:"finished"`
	Tasks    []taskSummary `json:"tasks"`
}

type taskSummary struct {
	NodeID     string `json:"node_id"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func taskSummaries(tasks []*run.Task) []taskSummary {
	summaries := make([]taskSummary, len(tasks))
	for i, t := range tasks {
		summaries[i] = taskSummary{
			NodeID:     t.NodeID(),
			Status:     string(t.Status()),
			DurationMs: t.DurationMs(),
			Error:      t.Error(),
		}
	}
	return summaries
}

func newRunCmd() *cobra.Command {
	var userID string
	var nodeIDs []string

	cmd := &cobra.Command{
		Use:   "run <canvas-id>",
		Short: "Fire a one-shot ProcessNodes invocation against a canvas, bypassing HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canvasID := args[0]
			cfg, err := config.Load()
			if err != nil {
				log.Fatalf("failed to load config: %v", err)
			}

			ctx := context.Background()
			pool, err := postgres.NewPool(ctx, postgres.Config{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				Database: cfg.Database.Database,
				SSLMode:  cfg.Database.SSLMode,
			})
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer postgres.Close(pool)

			eventStore := postgres.NewEventStore(pool)
			canvasRepo := postgres.NewCanvasRepository(pool)
			batchRepo := postgres.NewBatchRepository(pool, eventStore)
			taskRepo := postgres.NewTaskRepository(pool, eventStore)

			registry := processor.NewRegistry()
			if err := processors.RegisterAll(registry, processors.DefaultClientFactory, nil); err != nil {
				return fmt.Errorf("register processors: %w", err)
			}

			persistence := app.NewSchedulerPersistence(canvasRepo, batchRepo, taskRepo)
			engine := scheduler.NewEngine(canvasRepo, persistence, registry, storage.New(), eventbus.New(), 0, nil)

			batch, err := engine.ProcessNodes(ctx, canvasID, userID, nodeIDs)
			if err != nil {
				return fmt.Errorf("process nodes: %w", err)
			}

			tasks, err := taskRepo.FindByBatchID(ctx, batch.ID())
			if err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}

			out, _ := json.MarshalIndent(runSummary{
				BatchID:  batch.ID(),
				CanvasID: batch.CanvasID(),
				Finished: batch.IsFinished(),
				Tasks:    taskSummaries(tasks),
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owning user ID, required to pass the canvas ownership check")
	cmd.Flags().StringSliceVar(&nodeIDs, "nodes", nil, "target node IDs to process (defaults to every node in the canvas)")

	return cmd
}
