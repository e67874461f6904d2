package signal

import (
	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCreateRoom(c *WsSignalConn, env Envelope) {
	id := domain.RoomID(env.RoomID)
	if err := id.Validate(); err != nil {
		ctl.reply(c, env, CodeBadRequest, err.Error())
		return
	}
	snap, err := ctl.Hub.CreateRoom(c.id, id)
	ctl.replySnapshot(c, env, snap, err)
}

func (ctl *SignalWSController) handleJoinRoom(c *WsSignalConn, env Envelope) {
	id := domain.RoomID(env.RoomID)
	if err := id.Validate(); err != nil {
		ctl.reply(c, env, CodeBadRequest, err.Error())
		return
	}
	snap, err := ctl.Hub.JoinRoom(c.id, id)
	ctl.replySnapshot(c, env, snap, err)
}

func (ctl *SignalWSController) replySnapshot(c *WsSignalConn, env Envelope, snap backend.Snapshot, err error) {
	if err != nil {
		ctl.replyErr(c, env, err)
		return
	}
	log.Info().Str("module", "signal").Str("peer", c.id).Str("room", string(snap.RoomID)).
		Int("members", len(snap.Members)).Uint64("seq", snap.Seq).Msg("room state")
	ctl.replyWith(c, env, Envelope{
		RoomID:  string(snap.RoomID),
		OwnerID: string(snap.OwnerID),
		Seq:     snap.Seq,
		Members: snap.Members,
	})
}

// handleLeaveRoom leaves the current room; the socket stays open.
func (ctl *SignalWSController) handleLeaveRoom(c *WsSignalConn, env Envelope) {
	c.dropMedia()
	ctl.replyErr(c, env, ctl.Hub.LeaveRoom(c.id))
}

func (ctl *SignalWSController) handleDestroyRoom(c *WsSignalConn, env Envelope) {
	err := ctl.Hub.DestroyRoom(c.id, domain.RoomID(env.RoomID))
	if err == nil {
		c.dropMedia()
	}
	ctl.replyErr(c, env, err)
}

func (ctl *SignalWSController) handleKick(c *WsSignalConn, env Envelope) {
	ctl.replyErr(c, env, ctl.Hub.Kick(c.id, domain.UserID(env.Target)))
}

func (ctl *SignalWSController) handleTransferOwner(c *WsSignalConn, env Envelope) {
	ctl.replyErr(c, env, ctl.Hub.TransferOwner(c.id, domain.UserID(env.Target)))
}
