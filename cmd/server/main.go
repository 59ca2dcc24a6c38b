package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "orderdesk/internal/adapters/web"
	"orderdesk/internal/ai"
	"orderdesk/internal/app"
	"orderdesk/internal/core"
	"orderdesk/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	apiKey := os.Getenv("OPENAI_API_KEY")
	var agent *ai.Agent
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set; AI features disabled")
	} else {
		agent = ai.NewAgent(apiKey)
	}

	events := core.NewEventRecorder(pool)
	orderService := core.NewOrderService(pool, events)
	batchService := core.NewBatchService(pool, events)
	trackingService := core.NewTrackingService(pool, events)
	userService := core.NewUserService(pool)

	// A nil *ai.Agent must not reach the services as a non-nil interface.
	var normalizer core.AddressNormalizer
	var copywriter core.LandingCopywriter
	if agent != nil {
		normalizer = agent
		copywriter = agent
	}
	riskService := core.NewRiskService(pool, events, normalizer)
	catalogService := core.NewCatalogService(pool, events, os.Getenv("UPSTREAM_CATALOG_URL"), copywriter)

	svc := app.NewAppService(pool, orderService, batchService, trackingService, riskService, catalogService, userService, events)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
