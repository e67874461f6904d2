package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", c.id).Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("peer", c.id).Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("peer", c.id).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", c.id).Msg("readPump closing")
		ctl.Hub.Disconnect(c.id)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("peer", c.id).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("peer", c.id).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, Envelope{Type: TypeError, Code: CodeBadRequest, Message: "bad_payload"})
		return
	}

	switch env.Type {
	case TypeLogin:
		ctl.handleLogin(c, env)
	case TypeLogout:
		ctl.handleLogout(c, env)
	case TypeCreateRoom:
		ctl.handleCreateRoom(c, env)
	case TypeJoinRoom:
		ctl.handleJoinRoom(c, env)
	case TypeLeaveRoom:
		ctl.handleLeaveRoom(c, env)
	case TypeDestroyRoom:
		ctl.handleDestroyRoom(c, env)
	case TypeKick:
		ctl.handleKick(c, env)
	case TypeTransferOwner:
		ctl.handleTransferOwner(c, env)
	case TypeMediaState:
		ctl.handleMediaState(c, env)
	case TypeQuality:
		ctl.handleQuality(c, env)
	case TypeOffer:
		ctl.handleOffer(ctx, c, env)
	case TypeCandidate:
		ctl.handleCandidate(c, env)
	case TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.reply(c, env, CodeBadRequest, "unknown type")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// reply answers a request. Requests without a req_id get no result.
func (ctl *SignalWSController) reply(c *WsSignalConn, req Envelope, code int, msg string) {
	ctl.replyWith(c, req, Envelope{Code: code, Message: msg})
}

func (ctl *SignalWSController) replyWith(c *WsSignalConn, req Envelope, res Envelope) {
	if req.ReqID == "" {
		return
	}
	res.Type = TypeResult
	res.ReqID = req.ReqID
	if res.Code == CodeOK && res.Message == "" {
		res.Message = "success"
	}
	ctl.sendJSON(c, res)
}

func (ctl *SignalWSController) replyErr(c *WsSignalConn, req Envelope, err error) {
	if err != nil {
		log.Info().Str("module", "signal").Str("peer", c.id).Str("type", req.Type).Err(err).Msg("request rejected")
		ctl.reply(c, req, CodeOf(err), err.Error())
		return
	}
	ctl.reply(c, req, CodeOK, "")
}
