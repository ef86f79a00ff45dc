package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/service"
)

type AlertHandler struct {
	Alerts *service.AlertService
}

func (h *AlertHandler) Register(r *gin.Engine) {
	group := r.Group("/api/alerts")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/dismiss", h.dismiss)
	group.DELETE("/:id", h.delete)
}

func (h *AlertHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	f := repository.AlertFilters{
		OpenOnly:       boolQueryDefault(c, "open", true),
		Type:           repository.AlertType(trimmedQuery(c, "type")),
		SubscriptionID: trimmedQuery(c, "subscription_id"),
		Limit:          limit,
		Offset:         offset,
	}
	if _, ok := c.GetQuery("scope"); ok {
		scope := trimmedQuery(c, "scope")
		f.Scope = &scope
	}
	views, err := h.Alerts.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]alertDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toAlertDTO(v))
	}
	Ok(c, out, map[string]any{"limit": limit, "offset": offset, "count": len(out)})
}

func (h *AlertHandler) get(c *gin.Context) {
	v, err := h.Alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, toAlertDTO(v), nil)
}

func (h *AlertHandler) dismiss(c *gin.Context) {
	if err := h.Alerts.Dismiss(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"id": c.Param("id"), "dismissed": true}, nil)
}

func (h *AlertHandler) delete(c *gin.Context) {
	if err := h.Alerts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"id": c.Param("id"), "deleted": true}, nil)
}
