package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/guseggert/lambchops/status"
	"github.com/julienschmidt/httprouter"
	"nhooyr.io/websocket"
)

func (s *Server) router() http.Handler {
	router := httprouter.New()
	router.GET("/heartbeat", s.heartbeat)
	router.GET("/connections", s.connections)
	router.GET("/connect", s.connect)
	return router
}

// connect serves the frame protocol over a WebSocket connection, for clients that can only reach the HTTP port.
func (s *Server) connect(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debugf("connect WebSocket accept error: %s", err)
		return
	}
	conn := websocket.NetConn(r.Context(), wsConn, websocket.MessageBinary)
	_ = s.serveConn(r.Context(), conn, r.RemoteAddr)
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.heartbeatMut.Lock()
	lastHeartbeat := s.lastHeartbeat
	s.lastHeartbeat = time.Now()
	s.heartbeatMut.Unlock()

	s.writeJSON(w, status.Heartbeat{
		LastHeartbeat: lastHeartbeat.UTC().Format(time.RFC3339),
	})
}

func (s *Server) connections(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.writeJSON(w, s.Connections())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		s.logger.Debugf("error writing response: %s", err)
	}
}
