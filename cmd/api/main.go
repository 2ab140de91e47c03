package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adstudio/internal/adapter/repo"
	"adstudio/internal/assets"
	"adstudio/internal/chain"
	"adstudio/internal/http/handlers"
	httpapi "adstudio/internal/http/httpapi"
	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/infra/geoip"
	"adstudio/internal/middleware"
	"adstudio/internal/pipeline"
	"adstudio/internal/providers"
	"adstudio/internal/providers/dashscope"
	"adstudio/internal/providers/elevenlabs"
	"adstudio/internal/providers/gemini"
	"adstudio/internal/providers/openai"
	"adstudio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sqlRunner := infra.NewSQLRunner(dbpool, logger)
	creds := credentials.NewStore(sqlRunner)

	fileStore, err := storage.NewFileStore(cfg.StorageDir, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file store")
	}

	registry := buildRegistry(cfg, creds, &logger)

	runner := chain.NewRunner(chain.Policy{
		PerAttemptTimeout:      cfg.PerAttemptTimeout,
		MaxRetriesPerCandidate: cfg.MaxRetriesPerCandidate,
		BackoffBase:            cfg.BackoffBase,
	}, &logger)

	orchestrator, err := pipeline.NewOrchestrator(pipeline.Options{
		Runner:       runner,
		Registry:     registry,
		Materializer: assets.NewMaterializer(fileStore, &logger),
		Chains: pipeline.Chains{
			Text:   cfg.TextChain,
			Vision: cfg.VisionChain,
			Image:  cfg.ImageChain,
			Video:  cfg.VideoChain,
			Speech: cfg.SpeechChain,
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	var countryLookup middleware.CountryLookup
	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, market detection falls back to headers")
	} else if geoResolver != nil {
		countryLookup = geoResolver.CountryCode
	}

	app := handlers.NewApp(logger, sqlRunner, orchestrator, repo.NewSessionRepository(sqlRunner), creds)
	router := httpapi.NewRouter(httpapi.Options{
		App:           app,
		Logger:        logger,
		Config:        cfg,
		CountryLookup: countryLookup,
		StaticDir:     fileStore.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildRegistry binds every provider adapter to the capabilities it serves.
func buildRegistry(cfg *infra.Config, creds *credentials.Store, logger *infra.Logger) *providers.Registry {
	registry := providers.NewRegistry()

	oa := openai.NewClient(openai.Options{BaseURL: cfg.OpenAIBaseURL, Credentials: creds, Logger: logger})
	registry.Register(providers.CapabilityText, providers.ProviderOpenAI, providers.AdapterFunc(oa.GenerateText))
	registry.Register(providers.CapabilityVision, providers.ProviderOpenAI, providers.AdapterFunc(oa.GenerateText))
	registry.Register(providers.CapabilitySpeech, providers.ProviderOpenAI, providers.AdapterFunc(oa.GenerateSpeech))

	gm := gemini.NewClient(gemini.Options{BaseURL: cfg.GeminiBaseURL, Credentials: creds, Logger: logger})
	registry.Register(providers.CapabilityText, providers.ProviderGemini, providers.AdapterFunc(gm.GenerateText))
	registry.Register(providers.CapabilityVision, providers.ProviderGemini, providers.AdapterFunc(gm.GenerateText))
	registry.Register(providers.CapabilityImage, providers.ProviderGemini, providers.AdapterFunc(gm.GenerateImage))
	registry.Register(providers.CapabilityVideo, providers.ProviderGemini, providers.AdapterFunc(gm.GenerateVideo))

	ds := dashscope.NewClient(dashscope.Options{BaseURL: cfg.DashScopeBaseURL, Credentials: creds, Logger: logger})
	registry.Register(providers.CapabilityImage, providers.ProviderDashScope, providers.AdapterFunc(ds.GenerateImage))
	registry.Register(providers.CapabilityVideo, providers.ProviderDashScope, providers.AdapterFunc(ds.GenerateVideo))

	el := elevenlabs.NewClient(elevenlabs.Options{BaseURL: cfg.ElevenLabsBaseURL, Credentials: creds, Logger: logger})
	registry.Register(providers.CapabilitySpeech, providers.ProviderElevenLabs, providers.AdapterFunc(el.GenerateSpeech))

	return registry
}
