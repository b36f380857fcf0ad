package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speech-relay-service/internal/events"
	"speech-relay-service/internal/models"
	"speech-relay-service/internal/observability/metrics"
	"speech-relay-service/internal/service/enrich"
	"speech-relay-service/internal/service/rate"
	"speech-relay-service/internal/service/stt"
)

// ErrNotStreaming is returned for audio received outside the Streaming
// state. Not fatal; late chunks after a close trigger are expected.
var ErrNotStreaming = errors.New("session is not streaming")

// Emitter delivers outbound events to the client. Implementations must
// silently drop writes after the transport is gone rather than fail the
// session.
type Emitter interface {
	EmitTranscript(ev models.Transcript) error
	EmitServerCompleted() error
}

// Options configures a Session.
type Options struct {
	Publisher   *events.Publisher // optional transcript mirror
	Metrics     *metrics.Metrics  // defaults to metrics.DefaultMetrics
	Logger      zerolog.Logger
	IdleTimeout time.Duration // 0 disables the idle check
}

// Session binds one recognition stream to one client connection for the
// connection's lifetime. It implements stt.Callback for the engine's
// result flow. The engine handle is owned exclusively by the session
// and is closed exactly once, on whichever termination trigger fires
// first: client completion, transport disconnect, or upstream end/error.
type Session struct {
	id          string
	engine      stt.Engine
	emitter     Emitter
	publisher   *events.Publisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	idleTimeout time.Duration

	mu            sync.Mutex
	state         State
	tracker       rate.Tracker
	cancel        context.CancelFunc
	startedAt     time.Time
	clientGone    bool
	engineClosed  bool
	completedSent bool
	closeReason   string
	idleTimer     *time.Timer
}

// New creates a session for an authenticated connection. The engine
// stream is not opened until Start.
func New(id string, engine stt.Engine, emitter Emitter, opts Options) *Session {
	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Session{
		id:          id,
		engine:      engine,
		emitter:     emitter,
		publisher:   opts.Publisher,
		metrics:     m,
		logger:      opts.Logger.With().Str("component", "session").Str("sessionId", id).Logger(),
		idleTimeout: opts.IdleTimeout,
		state:       StateConnecting,
	}
}

// ID returns the session's correlation identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the recognition stream and moves the session to
// Streaming. The derived context is cancelled when the session closes.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("cannot start session in state %s", s.state)
	}
	s.state = StateAuthenticated
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.engine.Start(ctx, s); err != nil {
		cancel()
		return fmt.Errorf("open recognition stream: %w", err)
	}

	// The engine may deliver callbacks before Start returns; an
	// end-of-stream that already finalized the session must not be
	// undone here. Closed is terminal.
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStreaming
	s.startedAt = time.Now()
	if s.idleTimeout > 0 {
		s.idleTimer = time.AfterFunc(s.idleTimeout, s.expireIdle)
	}
	s.mu.Unlock()

	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("Session streaming")
	return nil
}

// HandleAudio forwards one inbound audio chunk to the recognition
// stream. Chunks are forwarded verbatim in arrival order; the caller
// must be the connection's single read loop.
func (s *Session) HandleAudio(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return ErrNotStreaming
	}
	s.touchIdleLocked()
	s.mu.Unlock()

	s.metrics.RecordAudioReceived(len(chunk))
	return s.engine.SendAudio(ctx, chunk)
}

// ClientCompleted handles the client's "finished sending audio" signal.
// The audio side of the recognition stream is half-closed; results
// already in flight keep arriving until the engine ends the stream,
// which then produces the server_completed notification.
func (s *Session) ClientCompleted() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	if s.closeReason == "" {
		s.closeReason = ReasonClientCompleted
	}
	closeEngine := !s.engineClosed
	s.engineClosed = true
	s.mu.Unlock()

	s.logger.Info().Msg("Client completed sending audio")
	if closeEngine {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Engine close failed")
		}
	}
}

// Disconnect handles transport-level closure. The recognition stream is
// closed and the session terminates without a server_completed
// notification; there is no one left to notify.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.clientGone = true
	alreadyClosing := s.state == StateClosing
	s.state = StateClosing
	if s.closeReason == "" {
		s.closeReason = ReasonDisconnect
	}
	closeEngine := !s.engineClosed
	s.engineClosed = true
	s.mu.Unlock()

	if !alreadyClosing {
		s.logger.Info().Msg("Client disconnected")
	}
	if closeEngine {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Engine close failed")
		}
	}
	s.finalize(ReasonDisconnect)
}

// OnResult receives one recognition result and relays the enriched
// transcript event. Results that arrive after the session closed are
// dropped.
func (s *Session) OnResult(res stt.Result) {
	s.mu.Lock()
	if s.state == StateClosed || s.clientGone {
		s.mu.Unlock()
		return
	}
	s.touchIdleLocked()
	s.mu.Unlock()

	if res.IsFinal {
		s.relayFinal(res)
	} else {
		s.relayInterim(res)
	}
}

// OnEnd handles the engine ending its result stream. The stream is
// closed (a no-op when the client already half-closed it) and the
// client, if still reachable, gets the server_completed notification.
func (s *Session) OnEnd() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	if s.closeReason == "" {
		s.closeReason = ReasonUpstreamEnd
	}
	closeEngine := !s.engineClosed
	s.engineClosed = true
	s.mu.Unlock()

	if closeEngine {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Engine close failed")
		}
	}
	s.finalize(ReasonUpstreamEnd)
}

// OnError handles a recognition stream failure. Equivalent to stream
// end for transition purposes: the session closes without crashing and
// without emitting a partial event for the erroring result.
func (s *Session) OnError(err error) {
	s.metrics.RecordEngineError()
	s.logger.Error().Err(err).Msg("Recognition stream error")

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	if s.closeReason == "" {
		s.closeReason = ReasonUpstreamError
	}
	closeEngine := !s.engineClosed
	s.engineClosed = true
	s.mu.Unlock()

	if closeEngine {
		_ = s.engine.Close()
	}
	s.finalize(ReasonUpstreamError)
}

func (s *Session) relayInterim(res stt.Result) {
	ev, ok := enrich.Interim(res)
	if !ok {
		return
	}

	if err := s.emitter.EmitTranscript(ev); err != nil {
		s.logger.Debug().Err(err).Msg("Interim transcript not delivered")
		return
	}
	s.metrics.RecordInterimTranscript()

	if s.publisher != nil {
		mirror := models.TranscriptPartial{
			EventType: events.TypePartial,
			SessionID: s.id,
			Timestamp: time.Now().UnixMilli(),
			Text:      ev.Transcript,
		}
		if err := s.publisher.PublishPartial(context.Background(), s.id, mirror); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mirror partial transcript")
		}
	}
}

func (s *Session) relayFinal(res stt.Result) {
	ev, ok := enrich.Final(res)
	if !ok {
		// Empty final segment: no event, tracker untouched.
		s.metrics.RecordFinalDropped()
		s.logger.Debug().Msg("Dropped final result with no timed words")
		return
	}

	s.mu.Lock()
	if ev.SpeedWPM != nil {
		s.tracker.Update(*ev.SpeedWPM)
	}
	ev.AverageSpeedWPM = s.tracker.Current()
	s.mu.Unlock()

	if err := s.emitter.EmitTranscript(ev); err != nil {
		s.logger.Debug().Err(err).Msg("Final transcript not delivered")
		return
	}
	s.metrics.RecordFinalTranscript()

	if s.publisher != nil {
		mirror := models.TranscriptFinal{
			EventType:       events.TypeFinal,
			SessionID:       s.id,
			Timestamp:       time.Now().UnixMilli(),
			Text:            ev.Transcript,
			SpeechClarity:   ev.SpeechClarity,
			SpeedWPM:        ev.SpeedWPM,
			AverageSpeedWPM: ev.AverageSpeedWPM,
		}
		if err := s.publisher.PublishFinal(context.Background(), s.id, mirror); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mirror final transcript")
		}
	}
}

// finalize moves the session to Closed exactly once. The trigger is
// the event that drove the final transition; the recorded close reason
// is whatever first moved the session out of Streaming, so a client
// completion drained through the engine is not counted as upstream_end.
func (s *Session) finalize(trigger string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.closeReason == "" {
		s.closeReason = trigger
	}
	reason := s.closeReason
	sendCompleted := trigger == ReasonUpstreamEnd && !s.clientGone && !s.completedSent
	if sendCompleted {
		s.completedSent = true
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	cancel := s.cancel
	startedAt := s.startedAt
	s.mu.Unlock()

	if sendCompleted {
		if err := s.emitter.EmitServerCompleted(); err != nil {
			s.logger.Debug().Err(err).Msg("server_completed not delivered")
		}
	}
	if cancel != nil {
		cancel()
	}

	// A session that never reached Streaming was never counted as
	// started, so it is not counted as ended either.
	if !startedAt.IsZero() {
		s.metrics.RecordSessionEnd(reason, time.Since(startedAt).Seconds())
	}
	s.logger.Info().Str("reason", reason).Msg("Session closed")
}

// expireIdle fires when no audio and no results were seen for the whole
// idle window. The stream is half-closed like a client completion, so a
// still-reachable client gets server_completed when the engine ends.
func (s *Session) expireIdle() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	if s.closeReason == "" {
		s.closeReason = ReasonIdleTimeout
	}
	closeEngine := !s.engineClosed
	s.engineClosed = true
	s.mu.Unlock()

	s.logger.Warn().Dur("idleTimeout", s.idleTimeout).Msg("Session idle, closing")
	if closeEngine {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Engine close failed")
		}
	}
}

func (s *Session) touchIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}
