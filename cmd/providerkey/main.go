package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/providers"
)

var keyEnvVars = map[providers.Provider]string{
	providers.ProviderOpenAI:     "OPENAI_API_KEY",
	providers.ProviderGemini:     "GEMINI_API_KEY",
	providers.ProviderDashScope:  "DASHSCOPE_API_KEY",
	providers.ProviderElevenLabs: "ELEVENLABS_API_KEY",
}

func main() {
	var (
		keyFlag       string
		providerFlag  string
		regionFlag    string
		accountIDFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", "", "provider to configure (openai, gemini, dashscope, elevenlabs)")
	flag.StringVar(&regionFlag, "region", "", "optional provider region")
	flag.StringVar(&accountIDFlag, "account-id", "", "optional provider account or organization id")
	flag.Parse()

	provider := providers.Provider(strings.TrimSpace(strings.ToLower(providerFlag)))
	envVar, ok := keyEnvVars[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envVar))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s API key is required via -key or %s\n", provider, envVar)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", string(provider)).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	err = store.Set(ctxExec, credentials.Credential{
		Provider:  provider,
		Token:     key,
		Region:    strings.TrimSpace(regionFlag),
		AccountID: strings.TrimSpace(accountIDFlag),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s api key: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s API key stored successfully\n", provider)
}
