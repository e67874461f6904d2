package orch

import (
	"github.com/dkeye/meetcore/internal/app"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

// handle runs on the state owner goroutine, once per engine event, in receive order.
func (o *Orchestrator) handle(ev core.EngineEvent) {
	switch {
	case ev.Type == core.EngineCompletion:
		req, ok := o.pending.Take(ev.RequestID)
		if !ok {
			return
		}
		o.complete(req, o.resultOf(req.Kind, ev), &ev)
	case ev.IsRoster():
		if re, ok := o.rooms.Apply(ev); ok {
			o.emit(re)
		}
	case ev.Type == core.EngineRoomClosed:
		reason := domain.CloseByBackend
		if ev.Reason == domain.CloseDestroyed.String() {
			reason = domain.CloseDestroyed
		}
		o.closeRoom(ev.RoomID, reason)
	case ev.Type == core.EngineOwnerChanged:
		o.closeRoom(ev.RoomID, domain.CloseOwnershipTransferred)
	case ev.Type == core.EngineKicked:
		o.closeRoom(ev.RoomID, domain.CloseKicked)
	case ev.Type == core.EngineConnectionLost:
		o.connectionLost(ev.Reason)
	default:
		log.Warn().Str("module", "app.orch").Int("type", int(ev.Type)).Msg("unknown engine event")
	}
}

func (o *Orchestrator) resultOf(kind app.RequestKind, ev core.EngineEvent) core.Result {
	if ev.Code == domain.CodeOK {
		msg := ev.Message
		if msg == "" {
			msg = "success"
		}
		return core.Result{Code: domain.CodeOK, Message: msg}
	}
	return core.Result{
		Code:    ev.Code,
		Message: ev.Message,
		Kind:    o.policy.Classify(kind, ev.Code, ev.Kind),
	}
}

// expire resolves a request the backend never answered.
func (o *Orchestrator) expire(id core.RequestID) {
	req, ok := o.pending.Expire(id)
	if !ok {
		return
	}
	o.complete(req, core.ResultOf(domain.ErrTimeout), nil)
}

// complete applies a resolved request to the state machine. ev is nil for
// locally produced results.
func (o *Orchestrator) complete(req *app.PendingRequest, res core.Result, ev *core.EngineEvent) {
	switch req.Kind {
	case app.RequestLogin:
		o.loginDone(req, res)
	case app.RequestLogout:
		o.logoutDone(req, res)
	case app.RequestCreateRoom, app.RequestJoinRoom:
		o.enterDone(req, res, ev)
	case app.RequestDestroyRoom:
		o.destroyDone(req, res)
	case app.RequestKick, app.RequestTransferOwner:
		o.ownerDone(req, res)
	}
}

// closeRoom handles a room ending without a LeaveRoom call.
func (o *Orchestrator) closeRoom(id domain.RoomID, reason domain.CloseReason) {
	room, ok := o.rooms.Room()
	if !ok || (id != "" && id != room.ID) {
		log.Debug().Str("module", "app.orch").Str("room", string(id)).Str("reason", reason.String()).Msg("close for unknown room ignored")
		return
	}
	if room.State == domain.RoomJoining {
		if reqID, ok := o.rooms.Pending(); ok {
			if req, ok := o.pending.Cancel(reqID); ok {
				o.deliver(req.Callback, core.ResultOf(domain.ErrRoomNotFound))
			}
		}
	}
	o.leave()
	log.Info().Str("module", "app.orch").Str("room", string(room.ID)).Str("reason", reason.String()).Msg("room closed")
	if room.State == domain.RoomActive {
		o.emit(core.RoomClosed{RoomID: room.ID, Reason: reason})
	}
}

// connectionLost fails everything in flight and drops back to LoggedOut.
func (o *Orchestrator) connectionLost(reason string) {
	log.Warn().Str("module", "app.orch").Str("reason", reason).Msg("engine connection lost")
	netErr := core.ResultOf(domain.ErrNetwork)
	for _, req := range o.pending.CancelKinds(allRequests...) {
		o.deliver(req.Callback, netErr)
	}
	room, hadRoom := o.rooms.Room()
	o.leave()
	o.loggedOut()
	if hadRoom && room.State == domain.RoomActive {
		o.emit(core.RoomClosed{RoomID: room.ID, Reason: domain.CloseDisconnected})
	}
}
