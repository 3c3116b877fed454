// Service metadata handlers: GET / and GET /health.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceInfo is returned by GET /.
type ServiceInfo struct {
	Name    string `json:"name" example:"QuickClip API"`
	Version string `json:"version" example:"1.0.0"`
	// Docs is the Swagger UI path, or null when docs are disabled.
	Docs        *string `json:"docs" example:"/docs/index.html"`
	Health      string  `json:"health" example:"/health"`
	Environment string  `json:"environment" example:"development"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Message   string    `json:"message" example:"QuickClip API is running"`
	Timestamp time.Time `json:"timestamp"`
}

// Meta serves the service metadata endpoints.
type Meta struct {
	Version     string
	Environment string
	// DocsPath is empty when Swagger UI is not mounted.
	DocsPath string

	Now func() time.Time
}

// Root handles GET /.
//
// @ID       root
// @Summary  Service information
// @Tags     Meta
// @Produce  json
// @Success  200  {object}  handlers.ServiceInfo
// @Router   / [get]
func (m *Meta) Root(c *gin.Context) {
	info := ServiceInfo{
		Name:        "QuickClip API",
		Version:     m.Version,
		Health:      "/health",
		Environment: m.Environment,
	}
	if m.DocsPath != "" {
		docs := m.DocsPath
		info.Docs = &docs
	}
	ok(c, http.StatusOK, info)
}

// Health handles GET /health.
//
// @ID       health
// @Summary  Liveness probe
// @Tags     Meta
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Router   /health [get]
func (m *Meta) Health(c *gin.Context) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Message:   "QuickClip API is running",
		Timestamp: now().UTC(),
	})
}
