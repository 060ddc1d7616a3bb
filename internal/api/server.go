package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"

	"github.com/sendora/sendora/internal/transport"
)

// Server represents the Fuego API server.
type Server struct {
	fuego    *fuego.Server
	deps     *Dependencies
	registry *BatchRegistry
	port     int
}

// Dependencies contains all service dependencies.
type Dependencies struct {
	Catalog    TemplateCatalog
	History    BatchHistory
	Transports transport.Factory
	Hub        HubBroadcaster
	Registry   *BatchRegistry
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	// Chi middleware (Fuego is net/http compatible)
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Logger)
	fuego.Use(s, middleware.Recoverer)

	// the wizard UI is served from a different port
	fuego.Use(s, cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE", "PUT"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	srv := &Server{
		fuego:    s,
		deps:     deps,
		registry: deps.Registry,
		port:     cfg.Port,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	// Recipients API
	recipientsGroup := fuego.Group(s.fuego, "/api/v1/recipients",
		option.Tags("Recipients"),
	)

	fuego.Post(recipientsGroup, "/parse", s.parseRecipients,
		option.Summary("Parse Recipient Table"),
		option.Description("Parses an uploaded CSV or XLSX file into a column schema and rows"),
	)

	// Templates API
	templatesGroup := fuego.Group(s.fuego, "/api/v1/templates",
		option.Tags("Templates"),
	)

	fuego.Get(templatesGroup, "/", s.listTemplates,
		option.Summary("List Templates"),
		option.Description("Returns all available certificate templates"),
	)

	fuego.Get(templatesGroup, "/{id}", s.getTemplate,
		option.Summary("Get Template"),
		option.Description("Returns a single certificate template by id"),
	)

	// Mappings API
	fuego.Post(s.fuego, "/api/v1/mappings/validate", s.validateMapping,
		option.Summary("Validate Field Mapping"),
		option.Description("Checks a field mapping against a table schema before any send"),
		option.Tags("Mappings"),
	)

	// SMTP API
	fuego.Post(s.fuego, "/api/v1/smtp/verify", s.verifySMTP,
		option.Summary("Verify SMTP Credentials"),
		option.Description("Performs the connect and auth handshake without sending a message"),
		option.Tags("SMTP"),
	)

	// Batches API
	batchesGroup := fuego.Group(s.fuego, "/api/v1/batches",
		option.Tags("Batches"),
	)

	fuego.Post(batchesGroup, "/", s.createBatch,
		option.Summary("Start Batch"),
		option.Description("Accepts a full wizard session and starts sending in the background"),
	)

	fuego.Get(batchesGroup, "/{id}", s.getBatch,
		option.Summary("Get Batch Status"),
		option.Description("Returns the live state of a batch; per-recipient results once finished"),
	)

	fuego.Delete(batchesGroup, "/{id}", s.cancelBatch,
		option.Summary("Cancel Batch"),
		option.Description("Requests cooperative cancellation: in-flight sends finish, queued recipients become CANCELLED"),
	)

	// History API
	historyGroup := fuego.Group(s.fuego, "/api/v1/history",
		option.Tags("History"),
	)

	fuego.Get(historyGroup, "/", s.listHistory,
		option.Summary("List Batch History"),
		option.Description("Returns persisted batch summaries, newest first"),
		option.Query("limit", "Maximum number of batches to return (default: 50)"),
	)

	fuego.Get(historyGroup, "/{id}", s.getHistoryBatch,
		option.Summary("Get Historic Batch"),
		option.Description("Returns one persisted batch with its per-recipient results"),
	)

	fuego.Delete(historyGroup, "/{id}", s.deleteHistoryBatch,
		option.Summary("Delete Historic Batch"),
		option.Description("Removes a persisted batch and its results"),
	)
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	// Fuego uses net/http server internally
	return nil
}

// Mux returns the underlying ServeMux for mounting additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.fuego.Mux
}
