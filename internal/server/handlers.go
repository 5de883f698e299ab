package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/notebook"
	"github.com/hyperjump/manabu/internal/storage"
)

type selectionRequest struct {
	Filenames []string `json:"filenames"`
}

type topicsRequest struct {
	Topic         string   `json:"topic"`
	NotebookCount int      `json:"notebook_count"`
	Topics        []string `json:"topics,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
}

type structureRequest struct {
	Topic     string           `json:"topic"`
	Structure structurePayload `json:"structure"`
	Feedback  string           `json:"feedback,omitempty"`
}

type cellRequest struct {
	Topic  string `json:"topic"`
	Prompt string `json:"prompt"`
	Type   string `json:"type"`
}

// structurePayload accepts a structure either as a JSON object or as a string holding one.
type structurePayload struct {
	raw []byte
}

func (p *structurePayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	p.raw = append([]byte(nil), data...)
	return nil
}

func (p structurePayload) String() string { return string(p.raw) }

func (p structurePayload) decode() (models.NotebookStructure, error) {
	var s models.NotebookStructure
	if len(p.raw) == 0 || string(p.raw) == "null" {
		return s, errors.New("structure is required")
	}
	if err := json.Unmarshal(p.raw, &s); err != nil {
		return s, fmt.Errorf("invalid structure: %w", err)
	}
	return s, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.svc.Store.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.svc.Store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"documents": docCount,
		"chunks":    chunkCount,
	}
	if s.svc.Index != nil {
		if n, err := s.svc.Index.Count(ctx); err == nil {
			resp["vectors"] = n
		} else {
			s.logger.Warn("status: count vectors failed", zap.Error(err))
		}
	}

	cfg := s.config
	resp["config"] = map[string]any{
		"storage_backend":     cfg.Storage.Backend,
		"vector_backend":      cfg.Vector.Backend,
		"embedding_provider":  cfg.Embedding.Provider,
		"embedding_dimension": cfg.Embedding.Dimensions,
		"generation_provider": cfg.Generation.Provider,
		"generation_model":    cfg.Generation.Model,
		"chunk_size":          cfg.Chunking.Size,
		"chunk_overlap":       cfg.Chunking.Overlap,
		"top_k":               cfg.Retrieval.TopK,
	}
	var paths []string
	if cfg.Storage.Backend == "sqlite" {
		paths = append(paths, cfg.Storage.DatabasePath)
	}
	if cfg.Vector.PersistPath != "" {
		paths = append(paths, cfg.Vector.PersistPath)
	}
	if len(paths) > 0 {
		if n, err := storage.UsageBytes(paths...); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Store.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": names, "details": docs})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	name := filepath.Base(header.Filename)
	if !extract.IsSupported(name) {
		s.respondError(w, http.StatusBadRequest, extract.ErrUnsupportedFormat.Error())
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.logger.Debug("index document request", zap.String("document", name), zap.Int("bytes", len(content)))
	res, err := s.svc.Indexer.IndexBytes(r.Context(), name, content)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("document", name), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":         res.Message,
		"document":        res.Document,
		"chunks":          res.Chunks,
		"already_indexed": res.AlreadyIndexed,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete document request", zap.String("document", name))
	res, err := s.svc.Indexer.Delete(r.Context(), name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("deletion failed", zap.String("document", name), zap.Error(err))
		}
		s.respondServiceError(w, err)
		return
	}
	deleted := 0
	if res.Recorded {
		deleted = 1
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Deleted " + name,
		"deleted_count": deleted,
		"vectors":       res.Vectors,
	})
}

func (s *Server) handleSelectDocuments(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.Store.BulkSetSelected(r.Context(), req.Filenames); err != nil {
		s.logger.Error("selection failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Selected %d PDFs", len(req.Filenames))})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	var req topicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.svc.Topics.Generate(r.Context(), req.Topic, req.NotebookCount)
	if err != nil {
		s.logger.Error("topics generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"topics": res.Topics})
}

func (s *Server) handleTopicsFeedback(w http.ResponseWriter, r *http.Request) {
	var req topicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	count := req.NotebookCount
	if count <= 0 {
		count = len(req.Topics)
	}
	res := s.svc.Topics.Refine(r.Context(), req.Topic, req.Topics, req.Feedback, count)
	s.respondJSON(w, http.StatusOK, map[string]any{"topics": res.Topics})
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.svc.Structure.Generate(r.Context(), req.Topic)
	if err != nil {
		s.logger.Error("structure generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"structure": res.Structure})
}

func (s *Server) handleStructureFeedback(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := s.svc.Structure.Refine(r.Context(), req.Topic, req.Structure.String(), req.Feedback)
	s.respondJSON(w, http.StatusOK, map[string]any{"structure": res.Structure})
}

func (s *Server) handleCellContent(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	typ, err := models.ParseCellType(req.Type)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	content, err := s.svc.Cells.Content(r.Context(), req.Topic, req.Prompt, typ)
	if err != nil {
		s.logger.Error("cell generation failed", zap.String("type", string(typ)), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleGenerateCells(w http.ResponseWriter, r *http.Request) {
	st, ok := s.decodeStructure(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Cells.GenerateAll(r.Context(), st)
	if err != nil {
		s.logger.Error("cell generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"structure": out})
}

func (s *Server) handleNotebook(w http.ResponseWriter, r *http.Request) {
	st, ok := s.decodeStructure(w, r)
	if !ok {
		return
	}
	doc, err := notebook.FromStructure(st)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	data, err := doc.Bytes()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := s.config.Output.NotebookFilename
	if filename == "" {
		filename = notebook.DefaultFilename
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	s.respondJSON(w, http.StatusOK, map[string]string{"notebook": string(data)})
}

func (s *Server) decodeStructure(w http.ResponseWriter, r *http.Request) (models.NotebookStructure, bool) {
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return models.NotebookStructure{}, false
	}
	st, err := req.Structure.decode()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return models.NotebookStructure{}, false
	}
	return st, true
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.svc.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.svc.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.svc.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.respondError(w, http.StatusNotFound, "directory not found")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	case !info.IsDir():
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.svc.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.svc.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.svc.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.svc.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondServiceError maps domain errors to status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, notebook.ErrInvalidCellType):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
