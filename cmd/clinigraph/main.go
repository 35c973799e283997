// Package main provides the standalone command line tool for the knowledge
// graph: ingest extraction files, run queries, and manage the quarantine
// without a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/config"
	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/service"
	"github.com/clinigraph-server/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.LoadLiteConfig()
	logger := newLogger(cfg)

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer st.Close()

	appCfg := &domain.Config{
		Storage: domain.StorageConfig{
			Path:                cfg.DBPath,
			ResolutionCacheSize: cfg.ResolutionCacheSize,
		},
		Scoring: domain.ScoringConfig{
			PresenceScore: 1,
			KeywordBonus:  5,
			SyndromeBonus: 10,
			PivotBonus:    15,
			ExpansionTop:  5,
		},
		Linker: domain.LinkerConfig{
			SimilarityThreshold: 0.3,
			TriggerBonus:        0.5,
			SubstringBonus:      1.0,
			MaxMatches:          5,
		},
	}
	svc := service.NewKnowledgeService(logger, st, appCfg)

	ctx := context.Background()
	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, svc, os.Args[2:])
	case "query":
		err = runQuery(ctx, svc, os.Args[2:])
	case "nodes":
		err = runNodes(ctx, svc)
	case "pending":
		err = runPending(ctx, svc)
	case "promote":
		err = runPromote(ctx, svc)
	case "delete":
		err = runDelete(ctx, svc, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: clinigraph <command> [flags]

Commands:
  ingest  -file <extraction.json>   ingest one extraction result
  query   -text <narrative> [-values <values.json>]
  nodes                             list all nodes
  pending                           list quarantined concepts
  promote                           consolidate the quarantine
  delete  -id <node_id>             delete a node`)
}

func runIngest(ctx context.Context, svc *service.KnowledgeService, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "path to the extraction JSON file")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading extraction file: %w", err)
	}

	var extraction domain.ExtractionResult
	if err := json.Unmarshal(data, &extraction); err != nil {
		return fmt.Errorf("parsing extraction file: %w", err)
	}

	report, err := svc.IngestExtraction(ctx, &extraction)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runQuery(ctx context.Context, svc *service.KnowledgeService, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	text := fs.String("text", "", "raw narrative text")
	valuesFile := fs.String("values", "", "path to an observed values JSON file")
	fs.Parse(args)

	obs := domain.Observation{RawText: *text}
	if *valuesFile != "" {
		data, err := os.ReadFile(*valuesFile)
		if err != nil {
			return fmt.Errorf("reading values file: %w", err)
		}
		if err := json.Unmarshal(data, &obs.Values); err != nil {
			return fmt.Errorf("parsing values file: %w", err)
		}
	}

	results, err := svc.Query(ctx, obs)
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Score <= 0 {
			continue
		}
		fmt.Printf("%-40s %8.1f\n", r.Node.Label, r.Score)
		for _, reason := range r.Reasoning {
			fmt.Printf("    %s\n", reason)
		}
	}
	return nil
}

func runNodes(ctx context.Context, svc *service.KnowledgeService) error {
	nodes, err := svc.ListNodes(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		fmt.Printf("%s  %-10s %s\n", n.ID, n.Kind, n.Label)
	}
	return nil
}

func runPending(ctx context.Context, svc *service.KnowledgeService) error {
	pending, err := svc.PendingConcepts(ctx)
	if err != nil {
		return err
	}
	for _, tc := range pending {
		fmt.Printf("%-30s seen=%d type=%s\n", tc.RawLabel, tc.CountSeen, tc.TypeGuess)
	}
	return nil
}

func runPromote(ctx context.Context, svc *service.KnowledgeService) error {
	promoted, err := svc.PromotePending(ctx)
	if err != nil {
		return err
	}
	for _, label := range promoted {
		fmt.Println(label)
	}
	fmt.Printf("%d concept(s) promoted\n", len(promoted))
	return nil
}

func runDelete(ctx context.Context, svc *service.KnowledgeService, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "node id to delete")
	fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return svc.DeleteNode(ctx, *id)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newLogger(cfg *config.LiteConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
