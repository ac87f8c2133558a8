package engine

import (
	"context"
	"errors"

	"github.com/verte-zerg/killchain/internal/model"
)

// Action errors. None of them changes engine state.
var (
	ErrNoSelection       = errors.New("nothing selected")
	ErrBusy              = errors.New("a submission is already pending")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrUnknownPhase      = errors.New("phase is not selectable this round")
	ErrUnknownMitigation = errors.New("mitigation is not offered this round")
)

var errNoSource = errors.New("no content source configured")

// ContentSource is the remote service that supplies and judges rounds.
type ContentSource interface {
	GetLog(ctx context.Context, req model.LogRequest) (model.LogResponse, error)
	ValidatePhase(ctx context.Context, req model.PhaseRequest) (model.PhaseResponse, error)
	ValidateMitigation(ctx context.Context, req model.MitigationRequest) (model.MitigationResponse, error)
}

type requestKind int

const (
	kindContent requestKind = iota
	kindFallback
	kindPhase
	kindMitigation
)

func (k requestKind) String() string {
	switch k {
	case kindContent:
		return "content"
	case kindFallback:
		return "fallback"
	case kindPhase:
		return "phase"
	case kindMitigation:
		return "mitigation"
	default:
		return "unknown"
	}
}

// request is the single outstanding asynchronous operation. Results carry
// the id they were issued with and are dropped unless it still matches.
type request struct {
	id     int
	kind   requestKind
	cancel context.CancelFunc
}

type contentMsg struct {
	id   int
	resp model.LogResponse
	err  error
}

type fallbackRoundMsg struct {
	id int
}

type phaseResultMsg struct {
	id       int
	selected string
	resp     model.PhaseResponse
	err      error
}

type mitigationResultMsg struct {
	id       int
	selected string
	resp     model.MitigationResponse
	err      error
}
