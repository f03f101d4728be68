package api

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/pkg/types"
)

// wsRequest is one client frame on the live-analysis socket. ID is echoed in
// the reply so clients can match answers to requests.
type wsRequest struct {
	ID string `json:"id,omitempty"`
	types.Prompt
}

// Reply frame types.
const (
	frameResult = "result"
	frameError  = "error"
)

type wsResponse struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// handleWS upgrades to a WebSocket and answers each Prompt frame with the
// same result /api/v1/inference would return. Frames are processed in order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxBody)

	ctx := r.Context()
	log := observe.Logger(ctx)
	s.metrics.ActiveWebSockets.Add(ctx, 1)
	defer s.metrics.ActiveWebSockets.Add(ctx, -1)
	log.Debug("websocket opened")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("websocket closed by client")
			default:
				if ctx.Err() == nil {
					log.Info("websocket read ended", "err", err)
				}
			}
			return
		}

		if typ != websocket.MessageText {
			if err := wsjson.Write(ctx, conn, wsResponse{Type: frameError, Status: http.StatusBadRequest, Detail: "frames must be JSON text"}); err != nil {
				return
			}
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := wsjson.Write(ctx, conn, wsResponse{Type: frameError, Status: http.StatusBadRequest, Detail: "invalid frame: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		reply := wsResponse{ID: req.ID, Type: frameResult}
		res, err := s.svc.Infer(ctx, req.Prompt)
		if err != nil {
			status, body := statusFor(err)
			log.Info("websocket analysis failed", "id", req.ID, "status", status, "err", err)
			reply = wsResponse{ID: req.ID, Type: frameError, Status: status, Detail: body.Detail}
		} else {
			reply.Result = res
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			log.Info("websocket write failed", "err", err)
			return
		}
	}
}
