package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// RegisterRoutes mounts the kiosk endpoints on r.
//
//	GET  /api/kiosk/view
//	POST /api/kiosk/tap              {"option"}
//	POST /api/kiosk/back
//	POST /api/kiosk/other            {"empleado","comentario"}
//	POST /api/kiosk/other/cancel
//	POST /api/kiosk/activity
//	POST /api/kiosk/hotcorner/down
//	POST /api/kiosk/hotcorner/up
//	POST /api/kiosk/admin            {"pin","apiUrl","sede","deviceId","newPin"}
//	POST /api/kiosk/admin/test       {"apiUrl"}
//	POST /api/kiosk/admin/close
//	POST /api/kiosk/online
//	POST /api/kiosk/visibility       {"visible"}
//	GET  /api/kiosk/queue
//	GET  /healthz
//	GET  /metrics
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	k := r.Group("/api/kiosk")
	{
		k.GET("/view", h.HandleView)
		k.POST("/tap", h.HandleTap)
		k.POST("/back", h.HandleBack)
		k.POST("/other", h.HandleOther)
		k.POST("/other/cancel", h.HandleOtherCancel)
		k.POST("/activity", h.HandleActivity)
		k.POST("/hotcorner/down", h.HandleHotCornerDown)
		k.POST("/hotcorner/up", h.HandleHotCornerUp)
		k.POST("/admin", h.HandleAdminSave)
		k.POST("/admin/test", h.HandleAdminTest)
		k.POST("/admin/close", h.HandleAdminClose)
		k.POST("/online", h.HandleOnline)
		k.POST("/visibility", h.HandleVisibility)
		k.GET("/queue", h.HandleQueue)
	}
	r.GET("/healthz", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewRouter returns a gin engine with recovery and request logging through
// the kiosk logger.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h))
	RegisterRoutes(r, h)
	return r
}

func requestLogger(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.URL.Path == "/api/kiosk/view" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Debugf(h.logger, "[api] %s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
