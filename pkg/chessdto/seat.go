package chessdto

import "strings"

const OpponentHuman = "human"

// SeatView is the sanitized seat data peers see. It never carries the
// connection identity or the handshake flags.
type SeatView struct {
	Color      string `json:"color"`
	Avatar     string `json:"avatar"`
	Controller string `json:"controller"`
	Opponent   string `json:"opponent,omitempty"`
	Automated  bool   `json:"automated,omitempty"`
	Tier       string `json:"tier,omitempty"`
}

// SelectionData is the selection_done payload. Opponent is only honoured for
// the white seat.
type SelectionData struct {
	Avatar     string `json:"avatar"`
	Controller string `json:"controller"`
	Opponent   string `json:"opponent,omitempty"`
}

func (s *SelectionData) Normalize() {
	s.Avatar = strings.TrimSpace(s.Avatar)
	s.Controller = strings.TrimSpace(s.Controller)
	s.Opponent = strings.ToLower(strings.TrimSpace(s.Opponent))
}

func (s SelectionData) Validate() error {
	if s.Avatar == "" {
		return DomainError{Code: CodeInvalidSelection, Message: "avatar required"}
	}
	if s.Controller == "" {
		return DomainError{Code: CodeInvalidSelection, Message: "controller required"}
	}
	return nil
}

// OpponentIsHuman reports whether the submitted opponent type keeps the
// black seat human.
func (s SelectionData) OpponentIsHuman() bool {
	return s.Opponent == "" || s.Opponent == OpponentHuman
}
