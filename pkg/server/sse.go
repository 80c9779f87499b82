package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/0xmhha/agentpulse/pkg/feed"
)

type connectedBody struct {
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

type unavailableBody struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason"`
}

// handleFeed streams an agent's events. The client gets "connected" once,
// then "unavailable" if the agent has no log source, or one "message" per
// event. A comment line every heartbeat interval keeps proxies from closing
// the connection.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		agent = s.config.DefaultAgent
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hub, sub, subErr := s.deps.Feed.Subscribe(agent)

	clientID := uuid.NewString()
	if sub != nil {
		clientID = sub.ID
		defer hub.Unsubscribe(sub.ID)
	}

	if err := writeEvent(w, "connected", connectedBody{ClientID: clientID, Timestamp: s.now()}); err != nil {
		return
	}
	if subErr != nil {
		s.logger.Info("feed unavailable", "agent", agent, "error", subErr)
		if err := writeEvent(w, "unavailable", unavailableBody{Agent: agent, Reason: subErr.Error()}); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn("streaming unsupported", "error", err)
		return
	}

	// A nil channel never fires, so an unavailable feed only heartbeats.
	var events <-chan feed.Event
	var done <-chan struct{}
	if sub != nil {
		events = sub.Events()
		done = sub.Done()
	}

	heartbeat := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case ev := <-events:
			if err := writeEvent(w, "message", ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
