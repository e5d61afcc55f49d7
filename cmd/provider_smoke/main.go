// cmd/provider_smoke/main.go
//
// Manual smoke test: runs one query against every configured provider and
// prints what came back. Useful when rotating API keys or onboarding a new
// provider account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/providers"
	"github.com/brandview-ai/brandview-workflows/services"
)

func main() {
	query := flag.String("query", "What are the best project management tools for small teams?", "query to run")
	timeout := flag.Duration("timeout", 90*time.Second, "per-provider timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	costService := services.NewCostService()

	requested := []string{
		providers.ProviderOpenAI,
		providers.ProviderAnthropic,
		providers.ProviderPerplexity,
		providers.ProviderGemini,
	}
	clients, skipped := providers.NewClients(requested, cfg, costService)
	for provider, reason := range skipped {
		fmt.Printf("SKIP %-12s %s\n", provider, reason)
	}
	if len(clients) == 0 {
		fmt.Println("no providers configured")
		os.Exit(1)
	}

	fmt.Printf("\nQuery: %s\n\n", *query)

	failures := 0
	for _, name := range requested {
		client, ok := clients[name]
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		started := time.Now()
		response, err := client.RunQuery(ctx, *query)
		cancel()

		if err != nil {
			failures++
			fmt.Printf("FAIL %-12s %v\n", name, err)
			continue
		}

		fmt.Printf("OK   %-12s model=%s latency=%s tokens=%d/%d cost=$%.6f\n",
			name, response.Model, time.Since(started).Round(time.Millisecond),
			response.InputTokens, response.OutputTokens, response.CostUSD)
		fmt.Printf("     %s\n", truncate(response.Text, 200))
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
