package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"antspend/internal/log"
	"antspend/internal/storage"
)

// requireBearer guards the reporting API with the configured static token.
// Failures carry WWW-Authenticate so clients know the expected scheme.
func (s *Server) requireBearer(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || s.apiToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Invalid or missing bearer token",
			})
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleActiveUsers serves GET /api/users/active/.
func (s *Server) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed"})
		return
	}

	report, err := s.reports.ActiveUsers(r.Context(), time.Now())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Active users report failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleUserComplete serves GET /api/users/{id}/complete/.
func (s *Server) handleUserComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "complete" {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}
	userID, ok := parseID(parts[0])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
		return
	}

	report, err := s.reports.UserComplete(r.Context(), userID, time.Now())
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "User complete report failed",
			log.FieldError, err, log.FieldUserID, userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAPIDocs describes the reporting endpoints for human readers.
func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title":          "antspend reporting API",
		"version":        "1.0",
		"authentication": "Authorization: Bearer <token>",
		"endpoints": []map[string]string{
			{
				"method":      "GET",
				"path":        "/api/users/active/",
				"description": "Users with a budget, alerts enabled, and expenses in the last 30 days",
			},
			{
				"method":      "GET",
				"path":        "/api/users/{id}/complete/",
				"description": "Complete snapshot of one user: budget, history, rollups",
			},
		},
	})
}

// handleAPISchema serves a minimal OpenAPI document for the reporting API.
func (s *Server) handleAPISchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]string{
			"title":   "antspend reporting API",
			"version": "1.0",
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer"},
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
		"paths": map[string]interface{}{
			"/api/users/active/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":   "List active users",
					"responses": map[string]interface{}{"200": map[string]string{"description": "Active users report"}},
				},
			},
			"/api/users/{id}/complete/": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Complete user snapshot",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "integer"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "User snapshot"},
						"404": map[string]string{"description": "Unknown user or no budget"},
					},
				},
			},
		},
	})
}
