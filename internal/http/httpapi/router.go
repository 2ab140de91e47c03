package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"adstudio/internal/http/handlers"
	"adstudio/internal/infra"
	"adstudio/internal/middleware"
)

// Options carries the router wiring.
type Options struct {
	App           *handlers.App
	Logger        zerolog.Logger
	Config        *infra.Config
	CountryLookup middleware.CountryLookup

	// StaticDir is served under /static/ when non-empty.
	StaticDir string
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.Config.CORSAllowedOrigins),
		middleware.RateLimit(opts.Config.RateLimitPerMin, time.Minute),
		middleware.Market(opts.Config.DefaultLocale, opts.Config.DefaultMarket, opts.CountryLookup),
	)

	app := opts.App

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Get("/strategy", app.GetStrategy)
			r.Get("/variations", app.GetVariations)
			r.Post("/media", app.RequestMedia)
			r.Get("/media", app.GetMedia)
			r.Get("/export", app.ExportAssets)
			r.Post("/stop", app.StopSession)
			r.Post("/persist", app.PersistSession)
		})
	})

	r.Get("/v1/history", app.History)
	r.Delete("/v1/history/{id}", app.DeleteHistory)

	r.Route("/v1/integrations", func(r chi.Router) {
		r.Get("/", app.CredentialStatus)
		r.Put("/{provider}", app.SetCredential)
		r.Delete("/{provider}", app.DeleteCredential)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
