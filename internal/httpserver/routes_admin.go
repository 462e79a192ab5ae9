// Admin back-office routes. All gated behind requireAuth + requireAdmin.
//
//   - POST   /admin/characters        → create a character
//   - PUT    /admin/characters/{id}   → update a character (replaces links)
//   - DELETE /admin/characters/{id}   → delete a character
//   - GET    /admin/lookups/{kind}    → list one taxonomy
//   - POST   /admin/lookups/{kind}    → add a taxonomy entry
//   - POST   /admin/upload            → store an image, return its URL

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/charadle/charadle/internal/catalog"
)

const maxUploadBytes = 8 << 20 // 8 MiB

// mountAdmin registers the admin routes.
func (s *Server) mountAdmin() {
	s.r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Use(s.requireAdmin)

		r.Post("/characters", s.handleCreateCharacter)
		r.Put("/characters/{id}", s.handleUpdateCharacter)
		r.Delete("/characters/{id}", s.handleDeleteCharacter)
		r.Get("/lookups/{kind}", s.handleListLookups)
		r.Post("/lookups/{kind}", s.handleCreateLookup)
		r.Post("/upload", s.handleUpload)
	})
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var in catalog.CharacterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id, err := s.catalog.CreateCharacter(r.Context(), in)
	if err != nil {
		log.Error().Err(err).Msg("create character")
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *Server) handleUpdateCharacter(w http.ResponseWriter, r *http.Request) {
	var in catalog.CharacterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	err := s.catalog.UpdateCharacter(r.Context(), chi.URLParam(r, "id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("update character")
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleDeleteCharacter(w http.ResponseWriter, r *http.Request) {
	err := s.catalog.DeleteCharacter(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("delete character")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// lookupKind validates the {kind} URL parameter.
func lookupKind(r *http.Request) (catalog.Kind, bool) {
	k := catalog.Kind(chi.URLParam(r, "kind"))
	for _, known := range catalog.Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

func (s *Server) handleListLookups(w http.ResponseWriter, r *http.Request) {
	kind, ok := lookupKind(r)
	if !ok {
		http.Error(w, `{"error":"unknown_kind"}`, http.StatusBadRequest)
		return
	}
	ls, err := s.catalog.Lookups(r.Context(), kind)
	if err != nil {
		log.Error().Err(err).Msg("list lookups")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(ls)
}

func (s *Server) handleCreateLookup(w http.ResponseWriter, r *http.Request) {
	kind, ok := lookupKind(r)
	if !ok {
		http.Error(w, `{"error":"unknown_kind"}`, http.StatusBadRequest)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	id, err := s.catalog.EnsureLookup(r.Context(), kind, body.Name)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(catalog.Lookup{ID: id, Name: strings.TrimSpace(body.Name)})
}

// handleUpload stores a multipart image under a random name and returns the
// URL it will be served from. Cropping happens client-side; the server only
// persists bytes.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.UploadsDir == "" {
		http.Error(w, `{"error":"uploads_disabled"}`, http.StatusServiceUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"missing_file"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
	default:
		http.Error(w, `{"error":"unsupported_type"}`, http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		log.Error().Err(err).Msg("create uploads dir")
		http.Error(w, `{"error":"upload_failed"}`, http.StatusInternalServerError)
		return
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.cfg.UploadsDir, name))
	if err != nil {
		log.Error().Err(err).Msg("create upload file")
		http.Error(w, `{"error":"upload_failed"}`, http.StatusInternalServerError)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		log.Error().Err(err).Msg("write upload file")
		http.Error(w, `{"error":"upload_failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"url": "/uploads/" + name})
}
