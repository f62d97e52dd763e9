// Package api exposes the kiosk engine over HTTP for a browser or webview
// front-end running on the tablet.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkalashnik/kiosk-survey/pkg/kiosk"
	"github.com/dkalashnik/kiosk-survey/pkg/kioskcfg"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

// Kiosk is the engine surface driven by the front-end.
type Kiosk interface {
	View(ctx context.Context) kiosk.View
	Tap(ctx context.Context, option string) kiosk.TapResult
	Back(ctx context.Context) kiosk.TapResult
	SubmitOther(ctx context.Context, employee, comment string) (string, bool)
	CancelOther()
	Activity()
	HotCornerDown()
	HotCornerUp()
	CloseAdmin()
	AdminSave(ctx context.Context, form kioskcfg.AdminForm) (string, bool)
	AdminTest(ctx context.Context, url string) (string, bool)
}

// Connectivity receives the front-end's "online" notifications.
type Connectivity interface {
	Signal() bool
}

type Kicker interface {
	Kick()
}

type VisibilityObserver interface {
	Visible(ctx context.Context)
}

type QueueInspector interface {
	Len(ctx context.Context) int
	Entries(ctx context.Context) []record.Record
}

type Handlers struct {
	kiosk      Kiosk
	conn       Connectivity
	drain      Kicker
	visibility VisibilityObserver
	queue      QueueInspector
	logger     log.Printer
}

type Deps struct {
	Kiosk      Kiosk
	Conn       Connectivity
	Drain      Kicker
	Visibility VisibilityObserver
	Queue      QueueInspector
	Logger     log.Printer
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		kiosk:      d.Kiosk,
		conn:       d.Conn,
		drain:      d.Drain,
		visibility: d.Visibility,
		queue:      d.Queue,
		logger:     log.OrDefault(d.Logger),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type TapRequest struct {
	Option string `json:"option" binding:"required"`
}

// TapResponse carries the tap outcome with the screen it produced.
type TapResponse struct {
	Result kiosk.TapResult `json:"result"`
	View   kiosk.View      `json:"view"`
}

type OtherRequest struct {
	Employee string `json:"empleado"`
	Comment  string `json:"comentario"`
}

type FormResponse struct {
	OK      bool       `json:"ok"`
	Message string     `json:"message,omitempty"`
	View    kiosk.View `json:"view"`
}

type AdminRequest struct {
	PIN      string `json:"pin"`
	APIURL   string `json:"apiUrl"`
	Site     string `json:"sede"`
	DeviceID string `json:"deviceId"`
	NewPIN   string `json:"newPin"`
}

type AdminTestRequest struct {
	APIURL string `json:"apiUrl"`
}

type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

type OnlineResponse struct {
	Probing bool `json:"probing"`
}

type QueueResponse struct {
	Length  int             `json:"length"`
	Entries []record.Record `json:"entries"`
}

func (h *Handlers) HandleView(c *gin.Context) {
	c.JSON(http.StatusOK, h.kiosk.View(c.Request.Context()))
}

func (h *Handlers) HandleTap(c *gin.Context) {
	var req TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	result := h.kiosk.Tap(ctx, req.Option)
	c.JSON(http.StatusOK, TapResponse{Result: result, View: h.kiosk.View(ctx)})
}

func (h *Handlers) HandleBack(c *gin.Context) {
	ctx := c.Request.Context()
	result := h.kiosk.Back(ctx)
	c.JSON(http.StatusOK, TapResponse{Result: result, View: h.kiosk.View(ctx)})
}

func (h *Handlers) HandleOther(c *gin.Context) {
	var req OtherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	msg, ok := h.kiosk.SubmitOther(ctx, req.Employee, req.Comment)
	c.JSON(http.StatusOK, FormResponse{OK: ok, Message: msg, View: h.kiosk.View(ctx)})
}

func (h *Handlers) HandleOtherCancel(c *gin.Context) {
	h.kiosk.CancelOther()
	c.JSON(http.StatusOK, h.kiosk.View(c.Request.Context()))
}

func (h *Handlers) HandleActivity(c *gin.Context) {
	h.kiosk.Activity()
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleHotCornerDown(c *gin.Context) {
	h.kiosk.HotCornerDown()
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleHotCornerUp(c *gin.Context) {
	h.kiosk.HotCornerUp()
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleAdminSave(c *gin.Context) {
	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	msg, ok := h.kiosk.AdminSave(ctx, kioskcfg.AdminForm{
		PIN:      req.PIN,
		APIURL:   req.APIURL,
		Site:     req.Site,
		DeviceID: req.DeviceID,
		NewPIN:   req.NewPIN,
	})
	c.JSON(http.StatusOK, FormResponse{OK: ok, Message: msg, View: h.kiosk.View(ctx)})
}

func (h *Handlers) HandleAdminTest(c *gin.Context) {
	var req AdminTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	msg, ok := h.kiosk.AdminTest(ctx, req.APIURL)
	c.JSON(http.StatusOK, FormResponse{OK: ok, Message: msg, View: h.kiosk.View(ctx)})
}

func (h *Handlers) HandleAdminClose(c *gin.Context) {
	h.kiosk.CloseAdmin()
	c.JSON(http.StatusOK, h.kiosk.View(c.Request.Context()))
}

// HandleOnline is called by the front-end when the platform reports the
// network came back. It forces a probe and a queue drain.
func (h *Handlers) HandleOnline(c *gin.Context) {
	probing := false
	if h.conn != nil {
		probing = h.conn.Signal()
	}
	if h.drain != nil {
		h.drain.Kick()
	}
	c.JSON(http.StatusAccepted, OnlineResponse{Probing: probing})
}

func (h *Handlers) HandleVisibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Visible && h.visibility != nil {
		h.visibility.Visible(c.Request.Context())
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleQueue(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusOK, QueueResponse{Entries: []record.Record{}})
		return
	}
	ctx := c.Request.Context()
	entries := h.queue.Entries(ctx)
	if entries == nil {
		entries = []record.Record{}
	}
	c.JSON(http.StatusOK, QueueResponse{Length: len(entries), Entries: entries})
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
