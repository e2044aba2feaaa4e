package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"actorscout/config"
	"actorscout/internal/discovery"
	"actorscout/internal/llm"
	"actorscout/internal/platform"
	"actorscout/internal/storage"
	"actorscout/internal/telemetry"
)

func discoverCMD() *cobra.Command {
	var cfgPath string
	var maxActors int

	cmd := &cobra.Command{
		Use:   "discover [intent...]",
		Short: "Run one discovery pass for a free-text intent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			intent := strings.Join(args, " ")

			tele := telemetry.NewTelemetry(cfg.Telemetry)

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			scoring, err := llm.RoutedCompleter(provider, cfg.LLM.Routing, cfg.LLM.Routing.Scoring, tele)
			if err != nil {
				return err
			}
			synthesis, err := llm.RoutedCompleter(provider, cfg.LLM.Routing, cfg.LLM.Routing.Synthesis, tele)
			if err != nil {
				return err
			}

			client, err := platform.NewClient(cfg.Platform, nil)
			if err != nil {
				return err
			}

			orchLogger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)
			orch, err := discovery.NewOrchestrator(cfg, orchLogger, tele, client, client, client, scoring, synthesis)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.General.DefaultTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.General.DefaultTimeout)
				defer cancel()
			}

			records, err := orch.Discover(ctx, discovery.Request{
				UserIntent: intent,
				MaxActors:  maxActors,
			})
			if err != nil {
				return err
			}

			store, err := storage.NewStorage(cfg.Storage)
			if err == nil {
				defer store.Close()
				runID := uuid.New().String()
				record := storage.RunRecord{
					ID:         runID,
					UserIntent: intent,
					MaxActors:  maxActors,
					Records:    records,
					CreatedAt:  time.Now().UTC(),
				}
				if err := store.SaveRunRecord(ctx, record); err != nil {
					orchLogger.Printf("warn: persisting run %s failed: %v", runID, err)
				}
			}

			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if cfg.Telemetry.CostTracking {
				orchLogger.Printf("total LLM cost: $%.4f", tele.TotalCost())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")
	cmd.Flags().IntVarP(&maxActors, "max-actors", "k", 0, "how many top candidates to execute (default from config)")
	return cmd
}
