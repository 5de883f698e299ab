// Package server provides the HTTP API for Manabu.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/structure"
	"github.com/hyperjump/manabu/internal/vector"
)

// DocumentIndexer indexes uploaded PDFs and removes indexed documents.
type DocumentIndexer interface {
	IndexBytes(ctx context.Context, name string, content []byte) (*indexer.Result, error)
	Delete(ctx context.Context, name string) (*indexer.DeleteResult, error)
}

// TopicsService drafts and refines notebook subtopics.
type TopicsService interface {
	Generate(ctx context.Context, topic string, count int) (*structure.TopicsResult, error)
	Refine(ctx context.Context, topic string, topics []string, feedback string, count int) *structure.TopicsResult
}

// StructureService drafts and refines notebook structures.
type StructureService interface {
	Generate(ctx context.Context, topic string) (*structure.Result, error)
	Refine(ctx context.Context, topic, current, feedback string) *structure.Result
}

// CellService generates cell content.
type CellService interface {
	Content(ctx context.Context, topic, prompt string, typ models.CellType) (string, error)
	GenerateAll(ctx context.Context, s models.NotebookStructure) (models.NotebookStructure, error)
}

// WatchService manages the inbox directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Services are the components the API exposes. Watch may be nil.
type Services struct {
	Store     storage.DocumentStore
	Index     vector.VectorIndex
	Indexer   DocumentIndexer
	Topics    TopicsService
	Structure StructureService
	Cells     CellService
	Watch     WatchService
}

// Server is the HTTP server for the Manabu API.
type Server struct {
	svc        Services
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server. When configPath is set, watch directory changes are saved to it.
func NewServer(svc Services, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		svc:        svc,
		config:     cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleIndexDocument)
		r.Put("/documents/selection", s.handleSelectDocuments)
		r.Delete("/documents/{name}", s.handleDeleteDocument)

		r.Post("/topics", s.handleTopics)
		r.Post("/topics/feedback", s.handleTopicsFeedback)
		r.Post("/structure", s.handleStructure)
		r.Post("/structure/feedback", s.handleStructureFeedback)
		r.Post("/cells/content", s.handleCellContent)
		r.Post("/cells/generate", s.handleGenerateCells)
		r.Post("/notebook", s.handleNotebook)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
