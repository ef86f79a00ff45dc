package handler

import (
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jask/wastewatch/internal/service"
)

// Deps are the services the HTTP API exposes.
type Deps struct {
	DB            *sql.DB
	DBPath        string
	Log           *zap.Logger
	Detection     *service.DetectionService
	Subscriptions *service.SubscriptionService
	Alerts        *service.AlertService
}

// NewRouter builds the gin engine with every handler registered.
func NewRouter(d Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if d.Log != nil {
		engine.Use(accessLog(d.Log))
	}
	(&HealthHandler{DB: d.DB, DBPath: d.DBPath}).Register(engine)
	(&SubscriptionHandler{Subs: d.Subscriptions}).Register(engine)
	(&AlertHandler{Alerts: d.Alerts}).Register(engine)
	(&DetectionHandler{Runs: d.Detection}).Register(engine)
	return engine
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
