package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/config"
	"github.com/junhyuk-dev/fortune-rag/internal/core/usecase"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/llm/openai"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/resilience"
	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/vector/qdrant"
	"github.com/junhyuk-dev/fortune-rag/internal/observability/logging"
)

// selfcheck audits the vector collections offline. It talks only to the
// vector backend and the embedding endpoint, so it runs without postgres
// or the queue.
func main() {
	check := flag.String("check", "all", "which audit to run: all, health, leak or quality")
	queriesPath := flag.String("queries", "", "yaml file with audit queries (defaults to SELFCHECK_FILE)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall audit timeout")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("selfcheck", cfg.LogLevel)
	slog.SetDefault(logger)

	llmClient := openai.New(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbedModel:     cfg.EmbedModel,
		Timeout:        cfg.LLMTimeout,
		ConnectTimeout: cfg.LLMConnectTimeout,
	})
	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := openai.NewEmbedderWithExecutor(llmClient, executor)
	factory := qdrant.NewFactoryWithOptions(cfg.QdrantURL, llmClient.EmbedModelID(), qdrant.Options{
		ResilienceExecutor: executor,
	})
	audit := usecase.NewSelfCheck(factory, embedder, cfg.CrossAdvanced, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	exitCode := 0

	if *check == "all" || *check == "health" {
		fmt.Println("== health ==")
		fmt.Print(usecase.RenderHealthTable(audit.Health(ctx)))
	}

	if *check == "all" || *check == "leak" {
		fmt.Println("== leak ==")
		report := audit.Leak(ctx)
		if report.Passed {
			fmt.Println("guard: PASS")
		} else {
			exitCode = 1
			fmt.Println("guard: FAIL")
			for _, problem := range report.Problems {
				fmt.Println("  - " + problem)
			}
		}
	}

	if *check == "all" || *check == "quality" {
		fmt.Println("== quality ==")
		path := *queriesPath
		if path == "" {
			path = cfg.SelfCheckFile
		}
		report := audit.Quality(ctx, usecase.LoadAuditQueries(path))
		fmt.Printf("queries:                 %d\n", report.Queries)
		fmt.Printf("avg_unique_axes@12:      %.2f\n", report.AvgUniqueAxesAt12)
		fmt.Printf("cross_present_rate:      %.2f\n", report.CrossPresentRate)
		fmt.Printf("evidence_rate:           %.2f\n", report.EvidenceRate)
		if report.Advanced {
			fmt.Printf("advanced_link_rate:      %.2f\n", report.AdvancedLinkRate)
			fmt.Printf("advanced_complete_rate:  %.2f\n", report.AdvancedEvidenceCompleteRate)
		}
	}

	os.Exit(exitCode)
}
