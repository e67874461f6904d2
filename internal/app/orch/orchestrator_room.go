package orch

import (
	"github.com/dkeye/meetcore/internal/app"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

var roomRequests = []app.RequestKind{
	app.RequestCreateRoom, app.RequestJoinRoom, app.RequestDestroyRoom, app.RequestKick, app.RequestTransferOwner,
}

// CreateRoom creates roomID with the caller as owner and first participant.
func (o *Orchestrator) CreateRoom(roomID string, cb core.Callback) {
	o.enterRoom(domain.RoomID(roomID), app.RequestCreateRoom, cb)
}

// JoinRoom joins an existing room. The roster is populated from the backend
// snapshot before cb runs and no roster change around the join is lost.
func (o *Orchestrator) JoinRoom(roomID string, cb core.Callback) {
	o.enterRoom(domain.RoomID(roomID), app.RequestJoinRoom, cb)
}

func (o *Orchestrator) enterRoom(id domain.RoomID, kind app.RequestKind, cb core.Callback) {
	o.submit(cb, func() {
		if o.State() != domain.Authenticated {
			o.fail(cb, domain.ErrNotAuthenticated)
			return
		}
		if err := id.Validate(); err != nil {
			o.fail(cb, domain.NewError(domain.KindRoomNotFound, domain.CodeRoomNotFound, err.Error()))
			return
		}
		if o.rooms.Busy() {
			o.fail(cb, domain.ErrRoomAlreadyActive)
			return
		}

		var (
			reqID core.RequestID
			err   error
		)
		if kind == app.RequestCreateRoom {
			reqID, err = o.engine.CreateRoom(id)
		} else {
			reqID, err = o.engine.JoinRoom(id)
		}
		if err != nil {
			o.fail(cb, engineError(err))
			return
		}
		if err := o.pending.Add(reqID, kind, cb); err != nil {
			o.fail(cb, domain.NewError(domain.KindBackend, domain.CodeBackend, err.Error()))
			return
		}
		if err := o.rooms.Begin(id, reqID, kind); err != nil {
			o.pending.Cancel(reqID)
			o.fail(cb, domain.ErrRoomAlreadyActive)
		}
	})
}

func (o *Orchestrator) enterDone(req *app.PendingRequest, res core.Result, ev *core.EngineEvent) {
	if !res.OK() {
		// A locally expired request may still succeed on the backend, so
		// the backend is told to drop the membership as well.
		if o.rooms.Abort(req.ID) && ev == nil {
			if err := o.engine.LeaveRoom(); err != nil {
				log.Warn().Str("module", "app.orch").Err(err).Str("req", string(req.ID)).Msg("engine leave after expired room request failed")
			}
		}
		o.deliver(req.Callback, res)
		return
	}

	self := o.UserID()
	owner := self
	var (
		snapshot []domain.Participant
		seq      uint64
	)
	if ev != nil {
		snapshot, seq = ev.Roster, ev.Seq
		if req.Kind == app.RequestJoinRoom {
			owner = ev.OwnerID
		}
	}
	snapshot = withSelf(snapshot, self)

	replayed, ok := o.rooms.Activate(req.ID, owner, snapshot, seq)
	if !ok {
		log.Warn().Str("module", "app.orch").Str("req", string(req.ID)).Msg("room completion without joining room")
		o.deliver(req.Callback, core.ResultOf(domain.ErrCanceled))
		return
	}
	o.deliver(req.Callback, res)
	for _, re := range replayed {
		o.emit(re)
	}
}

func withSelf(snapshot []domain.Participant, self domain.UserID) []domain.Participant {
	for _, p := range snapshot {
		if p.UserID == self {
			return snapshot
		}
	}
	out := make([]domain.Participant, 0, len(snapshot)+1)
	out = append(out, domain.NewParticipant(self))
	return append(out, snapshot...)
}

// LeaveRoom leaves the current room or cancels the one being joined.
// Calling it with no room is a no-op.
func (o *Orchestrator) LeaveRoom() {
	o.post(func() { o.leave() })
}

// leave reports whether there was a room to leave.
func (o *Orchestrator) leave() bool {
	for _, req := range o.pending.CancelKinds(roomRequests...) {
		o.deliver(req.Callback, core.ResultOf(domain.ErrCanceled))
	}
	room, ok := o.rooms.Teardown()
	if !ok {
		return false
	}
	if err := o.engine.LeaveRoom(); err != nil {
		log.Warn().Str("module", "app.orch").Err(err).Str("room", string(room.ID)).Msg("engine leave failed")
	}
	log.Info().Str("module", "app.orch").Str("room", string(room.ID)).Msg("left room")
	return true
}

// DestroyRoom ends the active room for everyone. Only the owner may do it.
func (o *Orchestrator) DestroyRoom(cb core.Callback) {
	o.submit(cb, func() {
		if o.State() != domain.Authenticated {
			o.fail(cb, domain.ErrNotAuthenticated)
			return
		}
		room, ok := o.rooms.Room()
		if !ok || room.State != domain.RoomActive {
			o.fail(cb, domain.ErrRoomNotFound)
			return
		}
		if !room.IsOwner(o.UserID()) {
			o.fail(cb, domain.ErrNoPrivilege)
			return
		}
		reqID, err := o.engine.DestroyRoom(room.ID)
		if err != nil {
			o.fail(cb, engineError(err))
			return
		}
		if err := o.pending.Add(reqID, app.RequestDestroyRoom, cb); err != nil {
			o.fail(cb, domain.NewError(domain.KindBackend, domain.CodeBackend, err.Error()))
		}
	})
}

func (o *Orchestrator) destroyDone(req *app.PendingRequest, res core.Result) {
	if res.OK() {
		o.leave()
	}
	o.deliver(req.Callback, res)
}

// KickUser removes userID from the active room. Only the owner may do it;
// the roster follows the backend's participant-left event.
func (o *Orchestrator) KickUser(userID string, cb core.Callback) {
	o.ownerRequest(domain.UserID(userID), app.RequestKick, cb)
}

// TransferOwner hands the active room to userID. The caller stays in the
// room as a plain participant.
func (o *Orchestrator) TransferOwner(userID string, cb core.Callback) {
	o.ownerRequest(domain.UserID(userID), app.RequestTransferOwner, cb)
}

func (o *Orchestrator) ownerRequest(target domain.UserID, kind app.RequestKind, cb core.Callback) {
	o.submit(cb, func() {
		if o.State() != domain.Authenticated {
			o.fail(cb, domain.ErrNotAuthenticated)
			return
		}
		room, ok := o.rooms.Room()
		if !ok || room.State != domain.RoomActive {
			o.fail(cb, domain.ErrRoomNotFound)
			return
		}
		self := o.UserID()
		if !room.IsOwner(self) {
			o.fail(cb, domain.ErrNoPrivilege)
			return
		}
		if target == self {
			o.fail(cb, domain.NewError(domain.KindParticipantNotFound, domain.CodeParticipantNotFound, "cannot target yourself"))
			return
		}
		if _, ok := o.rooms.Participant(target); !ok {
			o.fail(cb, domain.ErrParticipantNotFound)
			return
		}

		var (
			reqID core.RequestID
			err   error
		)
		if kind == app.RequestKick {
			reqID, err = o.engine.KickUser(target)
		} else {
			reqID, err = o.engine.TransferOwner(target)
		}
		if err != nil {
			o.fail(cb, engineError(err))
			return
		}
		if err := o.pending.AddFor(reqID, kind, target, cb); err != nil {
			o.fail(cb, domain.NewError(domain.KindBackend, domain.CodeBackend, err.Error()))
		}
	})
}

func (o *Orchestrator) ownerDone(req *app.PendingRequest, res core.Result) {
	if res.OK() {
		log.Info().Str("module", "app.orch").Str("kind", req.Kind.String()).Str("target", string(req.Target)).Msg("owner request done")
		if req.Kind == app.RequestTransferOwner {
			o.rooms.SetOwner(req.Target)
		}
	}
	o.deliver(req.Callback, res)
}
