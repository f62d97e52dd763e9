package kiosk

import "github.com/dkalashnik/kiosk-survey/pkg/config"

// session is the mutable state of the one kiosk session. A fresh value
// represents Home.
type session struct {
	primary     string
	tag         config.Tag
	reason      string
	interactive bool
	thankYou    *ThankYouView
	other       otherFormState
	admin       adminFormState
}

type otherFormState struct {
	open    bool
	message string
}

type adminFormState struct {
	open     bool
	apiURL   string
	site     string
	deviceID string
	message  string
}

func newSession() session {
	return session{interactive: true}
}
