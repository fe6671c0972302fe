package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ordenapp/internal/domain"

	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	r := s.router

	// Health check endpoint
	r.Get("/health", s.handleHealth)

	// Stored files of the local object store
	if s.filesDir != "" {
		r.Handle("/files/*", s.filesHandler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Read access for every role
		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)
		r.Get("/orders/{id}/history", s.handleOrderHistory)
		r.Get("/orders/{id}/plan", s.handleOrderPlan)
		r.Get("/orders/{id}/evidence", s.handleListEvidence)
		r.Get("/orders/{id}/signatures", s.handleListSignatures)
		r.Get("/orders/{id}/documents", s.handleListDocuments)
		r.Get("/catalog/service-types/{id}/plan", s.handlePreviewPlan)

		// Back office
		r.Group(func(r chi.Router) {
			r.Use(s.roleMiddleware(domain.RoleSupervisor))

			r.Post("/orders", s.handleCreateOrder)
			r.Patch("/orders/{id}", s.handleUpdateOrder)
			r.Post("/orders/{id}/assign", s.handleAssignOrder)
			r.Post("/orders/{id}/schedule", s.handleScheduleOrder)
			r.Post("/orders/{id}/cancel", s.handleCancelOrder)
			r.Put("/orders/{id}/service-type", s.handleChangeServiceType)
		})

		// Field execution
		r.Group(func(r chi.Router) {
			r.Use(s.roleMiddleware(domain.RoleTechnician, domain.RoleSupervisor))

			r.Post("/orders/{id}/start", s.handleStartOrder)
			r.Post("/orders/{id}/plan", s.handleAddPlanItem)
			r.Patch("/orders/{id}/plan/{itemId}", s.handleUpdatePlanItem)
			r.Post("/orders/{id}/evidence", s.handleAddEvidence)
			r.Post("/orders/{id}/signatures", s.handleAddSignature)
			r.Post("/orders/{id}/finalize", s.handleFinalizeOrder)
		})
	})
}

// filesHandler serves objects written by the local store
func (s *Server) filesHandler() http.Handler {
	filesDir := filepath.Clean(s.filesDir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := strings.TrimPrefix(r.URL.Path, "/files/")

		// Clean and validate the path to prevent directory traversal
		cleanPath := filepath.Clean(urlPath)
		if strings.Contains(cleanPath, "..") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		fullPath := filepath.Join(filesDir, cleanPath)

		absFilesDir, _ := filepath.Abs(filesDir)
		absFullPath, _ := filepath.Abs(fullPath)
		if !strings.HasPrefix(absFullPath, absFilesDir+string(filepath.Separator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		// Documents are overwritten in place when an order is finalized again
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, fullPath)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}
