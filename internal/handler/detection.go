package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jask/wastewatch/internal/service"
)

type DetectionHandler struct {
	Runs *service.DetectionService
}

type runRequest struct {
	Scope string `json:"scope"`
	AsOf  string `json:"as_of"`
}

func (h *DetectionHandler) Register(r *gin.Engine) {
	r.POST("/api/detection/run", h.run)
}

func (h *DetectionHandler) run(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
			return
		}
	}
	opts := service.RunOptions{Scope: req.Scope}
	if req.AsOf != "" {
		asOf, err := time.Parse(time.DateOnly, req.AsOf)
		if err != nil {
			Error(c, http.StatusBadRequest, "as_of must be YYYY-MM-DD", nil)
			return
		}
		opts.AsOf = asOf
	}
	report, err := h.Runs.Run(c.Request.Context(), opts)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, report, map[string]any{"partial": report.Partial()})
}
