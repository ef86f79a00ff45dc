package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jask/wastewatch/internal/database/repository"
	"github.com/jask/wastewatch/internal/detection"
	"github.com/jask/wastewatch/internal/service"
)

type SubscriptionHandler struct {
	Subs *service.SubscriptionService
}

func (h *SubscriptionHandler) Register(r *gin.Engine) {
	r.GET("/api/costs", h.costs)
	group := r.Group("/api/subscriptions")
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/:action", h.act)
}

func filtersFrom(c *gin.Context) repository.SubscriptionFilters {
	return repository.SubscriptionFilters{
		AccountID: trimmedQuery(c, "account"),
		Grouped:   boolQueryDefault(c, "grouped", false),
		Status:    repository.SubscriptionStatus(trimmedQuery(c, "status")),
	}
}

func (h *SubscriptionHandler) list(c *gin.Context) {
	subs, err := h.Subs.List(c.Request.Context(), filtersFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]subscriptionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscriptionDTO(s))
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *SubscriptionHandler) get(c *gin.Context) {
	sub, err := h.Subs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, toSubscriptionDTO(sub), nil)
}

// act applies acknowledge, cancel, exclude or reset.
func (h *SubscriptionHandler) act(c *gin.Context) {
	action, err := detection.ParseAction(c.Param("action"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sub, err := h.Subs.Apply(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, toSubscriptionDTO(sub), nil)
}

func (h *SubscriptionHandler) costs(c *gin.Context) {
	sum, err := h.Subs.Costs(c.Request.Context(), filtersFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{
		"monthly_cents":   sum.MonthlyCents,
		"monthly":         detection.FormatCents(sum.MonthlyCents),
		"yearly_cents":    sum.YearlyCents,
		"billing":         sum.Billing,
		"unknown_cadence": sum.UnknownCadence,
		"by_category":     sum.ByCategory,
	}, nil)
}
