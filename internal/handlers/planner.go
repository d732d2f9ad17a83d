package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"filltrip/internal/planner"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
	liveMaxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin and those from the serving host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return IsAllowedOrigin(origin) || origin == "http://"+r.Host || origin == "https://"+r.Host
}

// IsAllowedOrigin reports whether origin is the desktop webview or a local dev server
func IsAllowedOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasPrefix(origin, "wails://")
}

// planner resolves the caller's planner, creating it sized to ?width=
func (h *Handler) planner(r *http.Request) (*planner.Controller, error) {
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	return h.Planners.Get(tokenFrom(r.Context()), width)
}

// HandlePlannerView handles GET /api/v1/planner/view
func (h *Handler) HandlePlannerView(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.planner(r)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

// HandlePlannerEvent handles POST /api/v1/planner/events
func (h *Handler) HandlePlannerEvent(w http.ResponseWriter, r *http.Request) {
	var env planner.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	ev, err := env.Event()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error(), nil)
		return
	}

	ctrl, err := h.planner(r)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	view, err := ctrl.Send(ev)
	switch {
	case errors.Is(err, planner.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "PLANNER_CLOSED", "Your planner session ended. Reload the page.", nil)
		return
	case err != nil:
		h.Log.Debug("planner event rejected", zap.String("event", ev.Name()), zap.Error(err))
		h.writeError(w, http.StatusUnprocessableEntity, "EVENT_REJECTED", err.Error(), view)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// HandlePlannerLive handles GET /api/v1/planner/live. Every new view is
// pushed as a JSON text frame; event envelopes sent by the client are
// dispatched to the planner.
func (h *Handler) HandlePlannerLive(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.planner(r)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	token := tokenFrom(r.Context())
	log := h.Log.With(zap.String("planner_id", ctrl.ID()))
	log.Debug("live view connected")

	views, unsubscribe := ctrl.Subscribe()
	readDone := make(chan struct{})

	go func() {
		defer close(readDone)
		conn.SetReadLimit(liveMaxMessage)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})

		for {
			var env planner.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("live view read failed", zap.Error(err))
				}
				return
			}
			// Socket traffic never goes through Get, so keep the planner alive here
			h.Planners.Touch(token)

			ev, err := env.Event()
			if err != nil {
				log.Debug("live view event rejected", zap.Error(err))
				continue
			}
			if err := ctrl.Dispatch(ev); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer func() {
		ping.Stop()
		unsubscribe()
		conn.Close()
		log.Debug("live view disconnected")
	}()

	for {
		select {
		case view, ok := <-views:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "planner closed"))
				return
			}
			if err := conn.WriteJSON(view); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}
