package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jask/wastewatch/internal/database"
)

type HealthHandler struct {
	DB     *sql.DB
	DBPath string
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	if err := h.DB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	if h.DBPath != "" {
		version, dirty, err := database.SchemaVersion(h.DBPath)
		if err != nil || dirty {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "schema_unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "schema_version": version})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
