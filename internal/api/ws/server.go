// Package ws exposes the relay's per-connection streaming endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speech-relay-service/internal/auth"
	"speech-relay-service/internal/events"
	"speech-relay-service/internal/models"
	"speech-relay-service/internal/observability/metrics"
	"speech-relay-service/internal/service/session"
	"speech-relay-service/internal/service/stt"
)

// EngineFactory produces one recognition engine per session.
type EngineFactory func() stt.Engine

// Config holds relay server settings.
type Config struct {
	IdleTimeout time.Duration
}

// Server accepts client connections, runs the credential gate and binds
// one session per connection. Sessions share nothing mutable; the
// verifier, engine factory and publisher are immutable after startup.
type Server struct {
	verifier  *auth.Verifier
	newEngine EngineFactory
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       Config
	upgrader  websocket.Upgrader

	sessionCounter uint64
}

// NewServer creates the relay server.
func NewServer(verifier *auth.Verifier, factory EngineFactory, publisher *events.Publisher, logger zerolog.Logger, cfg Config) *Server {
	return &Server{
		verifier:  verifier,
		newEngine: factory,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		logger:    logger.With().Str("component", "relay").Logger(),
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 4 * 1024,
			// Browser clients connect from arbitrary origins; the
			// bearer token is the access control.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleStream is the per-connection entrypoint. The credential gate
// runs before the upgrade: a rejected connection never allocates a
// session or a recognition stream.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := s.verifier.Verify(token); err != nil {
		reason := classifyAuthError(err)
		s.metrics.RecordAuthRejected(reason)
		s.logger.Warn().Str("reason", reason).Str("remote", r.RemoteAddr).Msg("Connection refused")
		http.Error(w, "unauthorized: "+reason, http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id := s.nextSessionID()
	emitter := newConnEmitter(conn)
	sess := session.New(id, s.newEngine(), emitter, session.Options{
		Publisher:   s.publisher,
		Logger:      s.logger,
		IdleTimeout: s.cfg.IdleTimeout,
	})

	if err := sess.Start(context.Background()); err != nil {
		s.logger.Error().Err(err).Str("sessionId", id).Msg("Failed to start session")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session start failed"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	s.readLoop(conn, emitter, sess)
}

// readLoop is the connection's single reader: binary frames are audio,
// text frames are named control events.
func (s *Server) readLoop(conn *websocket.Conn, emitter *connEmitter, sess *session.Session) {
	defer func() {
		emitter.shutdown()
		sess.Disconnect()
		_ = conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.HandleAudio(context.Background(), data); err != nil {
				if errors.Is(err, session.ErrNotStreaming) {
					continue
				}
				s.logger.Warn().Err(err).Str("sessionId", sess.ID()).Msg("Audio forward failed")
				return
			}
		case websocket.TextMessage:
			var env models.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				s.logger.Debug().Err(err).Str("sessionId", sess.ID()).Msg("Ignoring malformed control event")
				continue
			}
			if env.Event == models.EventClientCompleted {
				sess.ClientCompleted()
			}
		}
	}
}

func (s *Server) nextSessionID() string {
	n := atomic.AddUint64(&s.sessionCounter, 1)
	return fmt.Sprintf("sess-%d-%d", time.Now().Unix(), n)
}

// bearerToken extracts the auth payload from the Authorization header,
// falling back to the token query parameter for browser clients that
// cannot set websocket headers.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// classifyAuthError maps gate errors to reason labels. The label is
// what gets logged and counted; token contents never are.
func classifyAuthError(err error) string {
	switch {
	case errors.Is(err, auth.ErrKeyNotConfigured):
		return "key_not_configured"
	case errors.Is(err, auth.ErrMissingToken):
		return "missing_token"
	default:
		return "invalid_token"
	}
}
