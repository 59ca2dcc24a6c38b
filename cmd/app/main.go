package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"orderdesk/internal/ai"
	"orderdesk/internal/core"
	"orderdesk/internal/db"

	"github.com/joho/godotenv"
)

const usage = `Usage: app <command> [args]

Commands:
  create-batch                 batch all eligible confirmed orders
  release <batch-id>           release a LOCKED batch
  undo-release <batch-id> "<reason>"
                               revert a RELEASED batch (requires a reason)
  score <order-id>             run risk scoring on one order
  sync-products                pull the upstream catalog feed
  gen-landing <product-id>     generate landing copy for a product
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	apiKey := os.Getenv("OPENAI_API_KEY")
	var agent *ai.Agent
	if apiKey != "" {
		agent = ai.NewAgent(apiKey)
	}
	var normalizer core.AddressNormalizer
	var copywriter core.LandingCopywriter
	if agent != nil {
		normalizer = agent
		copywriter = agent
	}

	events := core.NewEventRecorder(pool)
	batches := core.NewBatchService(pool, events)
	risk := core.NewRiskService(pool, events, normalizer)
	catalog := core.NewCatalogService(pool, events, os.Getenv("UPSTREAM_CATALOG_URL"), copywriter)

	const actor = "cli"

	switch os.Args[1] {
	case "create-batch":
		batch, err := batches.CreateBatch(ctx, actor)
		if err != nil {
			log.Fatalf("create-batch: %v", err)
		}
		printJSON(batch)

	case "release":
		batch, err := batches.ReleaseBatch(ctx, argID(2), actor)
		if err != nil {
			log.Fatalf("release: %v", err)
		}
		printJSON(batch)

	case "undo-release":
		if len(os.Args) < 4 {
			log.Fatal(`Usage: app undo-release <batch-id> "<reason>"`)
		}
		batch, err := batches.UndoRelease(ctx, argID(2), actor, os.Args[3])
		if err != nil {
			log.Fatalf("undo-release: %v", err)
		}
		printJSON(batch)

	case "score":
		order, err := risk.ScoreOrder(ctx, argID(2))
		if err != nil {
			log.Fatalf("score: %v", err)
		}
		printJSON(order)

	case "sync-products":
		count, err := catalog.SyncProducts(ctx, actor)
		if err != nil {
			log.Fatalf("sync-products: %v", err)
		}
		fmt.Printf("synced %d products\n", count)

	case "gen-landing":
		landing, err := catalog.GenerateLanding(ctx, argID(2), actor)
		if err != nil {
			log.Fatalf("gen-landing: %v", err)
		}
		printJSON(landing)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func argID(idx int) int64 {
	if len(os.Args) <= idx {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	id, err := strconv.ParseInt(os.Args[idx], 10, 64)
	if err != nil {
		log.Fatalf("invalid id %q", os.Args[idx])
	}
	return id
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
