package kiosk

import (
	"context"
	"errors"

	"github.com/dkalashnik/kiosk-survey/pkg/kioskcfg"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// HotCornerDown starts the long press that opens the admin form.
func (e *Engine) HotCornerDown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.armIdleLocked()
	e.stopPressLocked()
	token := e.pressToken
	e.pressTimer = e.clock.AfterFunc(e.timings.LongPress, func() { e.onLongPress(token) })
}

// HotCornerUp cancels a long press that has not completed yet.
func (e *Engine) HotCornerUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPressLocked()
}

func (e *Engine) stopPressLocked() {
	if e.pressTimer != nil {
		e.pressTimer.Stop()
		e.pressTimer = nil
	}
	e.pressToken++
}

func (e *Engine) onLongPress(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || token != e.pressToken {
		return
	}
	e.pressTimer = nil
	e.openAdminLocked()
}

// OpenAdmin shows the admin form without the long press, for front-ends
// that have their own gesture.
func (e *Engine) OpenAdmin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.openAdminLocked()
}

func (e *Engine) openAdminLocked() {
	e.stopCloseLocked()
	state := adminFormState{open: true}
	if e.admin != nil {
		cfg := e.admin.Get()
		state.apiURL, state.site, state.deviceID = cfg.APIURL, cfg.Site, cfg.DeviceID
	}
	e.session.admin = state
	e.logger.Printf("[kiosk.admin] admin form opened")
}

// CloseAdmin hides the admin form.
func (e *Engine) CloseAdmin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCloseLocked()
	e.session.admin = adminFormState{}
}

func (e *Engine) stopCloseLocked() {
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	e.closeToken++
}

// AdminSave submits the admin form. The returned message is also shown
// inline in the form; a successful save closes the form shortly after.
func (e *Engine) AdminSave(ctx context.Context, form kioskcfg.AdminForm) (string, bool) {
	e.mu.Lock()
	open := e.session.admin.open && !e.closed
	e.mu.Unlock()
	if !open || e.admin == nil {
		return "", false
	}

	cfg, err := e.admin.Admin(ctx, form)

	msg := MsgSaved
	switch {
	case errors.Is(err, kioskcfg.ErrWrongPIN):
		msg = MsgWrongPIN
	case errors.Is(err, kioskcfg.ErrMissingURL):
		msg = MsgMissingURL
	case err != nil:
		log.Errorf(e.logger, "[kiosk.AdminSave] save failed: %v", err)
		msg = MsgSaveFailed
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.session.admin.open || e.closed {
		return msg, err == nil
	}
	e.session.admin.message = msg
	if err != nil {
		return msg, false
	}
	e.session.admin.apiURL, e.session.admin.site, e.session.admin.deviceID = cfg.APIURL, cfg.Site, cfg.DeviceID
	e.stopCloseLocked()
	token := e.closeToken
	e.closeTimer = e.clock.AfterFunc(e.timings.AdminClose, func() { e.onAdminClose(token) })
	return msg, true
}

func (e *Engine) onAdminClose(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || token != e.closeToken {
		return
	}
	e.closeTimer = nil
	e.session.admin = adminFormState{}
}

// AdminTest probes the collector at url without saving anything.
func (e *Engine) AdminTest(ctx context.Context, url string) (string, bool) {
	if e.admin == nil {
		return MsgAPIFailed, false
	}
	err := e.admin.TestConnection(ctx, url)
	msg, ok := MsgAPIOK, true
	if err != nil {
		log.Warnf(e.logger, "[kiosk.AdminTest] %s: %v", url, err)
		msg, ok = MsgAPIFailed, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.admin.open {
		e.session.admin.message = msg
	}
	return msg, ok
}
