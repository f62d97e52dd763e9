package kiosk

import (
	"context"
	"fmt"

	"github.com/dkalashnik/kiosk-survey/pkg/config"
)

// View is a render-ready snapshot of the kiosk screen.
type View struct {
	Screen      string        `json:"screen"`
	Question    string        `json:"question"`
	Options     []ViewOption  `json:"options"`
	Selection   string        `json:"selection,omitempty"`
	BackVisible bool          `json:"back_visible"`
	Interactive bool          `json:"interactive"`
	ThankYou    *ThankYouView `json:"thank_you,omitempty"`
	Other       *OtherView    `json:"other,omitempty"`
	Admin       *AdminView    `json:"admin,omitempty"`
	Status      StatusView    `json:"status"`
}

type ViewOption struct {
	Text string     `json:"text"`
	Tag  config.Tag `json:"tag,omitempty"`
}

type ThankYouView struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type OtherView struct {
	Message string `json:"message,omitempty"`
}

type AdminView struct {
	APIURL   string `json:"apiUrl"`
	Site     string `json:"sede"`
	DeviceID string `json:"deviceId"`
	Message  string `json:"message,omitempty"`
}

type StatusView struct {
	Online bool   `json:"online"`
	Queued int    `json:"queued"`
	Label  string `json:"label"`
}

// View renders the current screen. The connectivity chip is read after the
// engine lock is released.
func (e *Engine) View(ctx context.Context) View {
	e.mu.Lock()
	v := e.viewLocked()
	e.mu.Unlock()

	v.Status = e.statusView(ctx)
	return v
}

func (e *Engine) viewLocked() View {
	s := e.session
	v := View{
		Screen:      e.machine.Current(),
		Interactive: s.interactive,
		Selection:   s.primary,
	}

	switch v.Screen {
	case StateHome:
		v.Question = e.taxonomy.Question
		for _, opt := range e.taxonomy.Options {
			v.Options = append(v.Options, ViewOption{Text: opt.Text, Tag: opt.Tag})
		}
	case StateReason:
		v.Question = e.taxonomy.ReasonPrompt(s.primary)
		v.BackVisible = true
		for _, reason := range e.taxonomy.ReasonsFor(s.tag) {
			v.Options = append(v.Options, ViewOption{Text: reason})
		}
	case StateThankYou:
		v.Question = e.taxonomy.ReasonPrompt(s.primary)
		if s.thankYou != nil {
			copied := *s.thankYou
			v.ThankYou = &copied
		}
	}

	if s.other.open {
		v.Other = &OtherView{Message: s.other.message}
	}
	if s.admin.open {
		v.Admin = &AdminView{
			APIURL:   s.admin.apiURL,
			Site:     s.admin.site,
			DeviceID: s.admin.deviceID,
			Message:  s.admin.message,
		}
	}
	return v
}

func (e *Engine) statusView(ctx context.Context) StatusView {
	if e.status == nil {
		return StatusView{Online: true, Label: MsgStatusOn}
	}
	sv := StatusView{Online: e.status.Online(), Queued: e.status.Queued(ctx)}
	switch {
	case !sv.Online:
		sv.Label = fmt.Sprintf(MsgStatusOff, sv.Queued)
	case sv.Queued > 0:
		sv.Label = fmt.Sprintf(MsgStatusQueue, sv.Queued)
	default:
		sv.Label = MsgStatusOn
	}
	return sv
}
