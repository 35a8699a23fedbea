package router

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/handler"
	"github.com/stepwise-ai/stepwise/internal/middleware"
	"github.com/stepwise-ai/stepwise/internal/service"
	"github.com/stepwise-ai/stepwise/internal/settings"
)

// Version is reported by the health endpoints.
const Version = "0.1.0"

// New builds the HTTP router.
// sseMan, settingsSvc, configSvc and decompSvc may be nil; nil ones are
// created internally. Passing pre-created instances allows main.go to share
// them with the retention sweeper and the settings store.
func New(
	cfg *config.Config,
	db *sql.DB,
	sseMan *service.SSEManager,
	settingsSvc *settings.Service,
	configSvc *service.ModelConfigService,
	decompSvc *service.DecompositionService,
) http.Handler {
	if sseMan == nil {
		sseMan = service.NewSSEManager()
	}
	if settingsSvc == nil {
		settingsSvc = settings.NewService(settings.NewMemoryStore(), cfg.DecompositionEnabled)
	}
	if configSvc == nil {
		configSvc = service.NewModelConfigService(db)
	}
	if decompSvc == nil {
		decompSvc = service.NewDecompositionService(
			db, settingsSvc, configSvc, sseMan,
			time.Duration(cfg.LLMTimeoutSeconds)*time.Second)
	}

	healthH := handler.NewHealthHandler(Version)
	decompH := handler.NewDecompositionHandler(decompSvc)
	settingsH := handler.NewSettingsHandler(settingsSvc, sseMan)
	configH := handler.NewModelConfigHandler(configSvc)
	eventsH := handler.NewEventsHandler(sseMan)

	requireAuth := middleware.Auth(cfg.AuthMode, cfg.APIToken)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Trace)
	r.Use(middleware.CORS)

	// Public
	r.Get("/v1/health", healthH.Health)
	r.Get("/v1/version", healthH.Version)

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/v1/decompositions", decompH.Create)
		r.Get("/v1/decompositions", decompH.List)
		r.Get("/v1/decompositions/{decomposition_id}", decompH.Get)

		r.Get("/v1/settings/decomposition", settingsH.GetDecomposition)
		r.Put("/v1/settings/decomposition", settingsH.PutDecomposition)

		r.Get("/v1/model-configs", configH.List)
		r.Post("/v1/model-configs", configH.Create)
		r.Get("/v1/model-configs/{config_id}", configH.Get)
		r.Put("/v1/model-configs/{config_id}", configH.Update)
		r.Delete("/v1/model-configs/{config_id}", configH.Delete)
		r.Post("/v1/model-configs/{config_id}/default", configH.SetDefault)

		r.Get("/v1/events", eventsH.Stream)
	})

	return r
}
