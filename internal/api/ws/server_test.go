package ws

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speech-relay-service/internal/auth"
	"speech-relay-service/internal/events"
	"speech-relay-service/internal/models"
	"speech-relay-service/internal/service/stt"
	"speech-relay-service/internal/service/stt/mock"
)

type relayFixture struct {
	server      *httptest.Server
	token       string
	engineCount *int32
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	verifier, err := auth.NewVerifier(pemKey)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "client-test",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var engineCount int32
	factory := func() stt.Engine {
		atomic.AddInt32(&engineCount, 1)
		return mock.NewScripted(mock.SimulatedUtterance{
			Partials:   []string{"hel"},
			Final:      "hello world",
			Confidence: 0.9,
			Words: []stt.Word{
				{Text: "hello", Start: 0.0, End: 1.0},
				{Text: "world", Start: 1.0, End: 2.0},
			},
		})
	}

	relay := NewServer(verifier, factory, events.New(nil), zerolog.Nop(), Config{})

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stream", relay.HandleStream)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &relayFixture{server: srv, token: token, engineCount: &engineCount}
}

func (f *relayFixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/stream"
}

func (f *relayFixture) dial(t *testing.T, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	return dialer.Dial(f.wsURL(), header)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestHandleStream_MissingTokenRefused(t *testing.T) {
	f := newRelayFixture(t)

	_, resp, err := f.dial(t, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	if got := atomic.LoadInt32(f.engineCount); got != 0 {
		t.Errorf("expected no recognition stream for refused connection, got %d", got)
	}
}

func TestHandleStream_InvalidTokenRefused(t *testing.T) {
	f := newRelayFixture(t)

	header := http.Header{"Authorization": []string{"Bearer not.a.valid.token"}}
	_, resp, err := f.dial(t, header)
	if err == nil {
		t.Fatal("expected dial to fail with an invalid token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	if got := atomic.LoadInt32(f.engineCount); got != 0 {
		t.Errorf("expected no recognition stream for refused connection, got %d", got)
	}
}

func TestHandleStream_TokenQueryParamAccepted(t *testing.T) {
	f := newRelayFixture(t)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(f.wsURL()+"?token="+f.token, nil)
	if err != nil {
		t.Fatalf("expected dial to succeed with token query param: %v", err)
	}
	conn.Close()
}

func TestHandleStream_FullSession(t *testing.T) {
	f := newRelayFixture(t)

	header := http.Header{"Authorization": []string{"Bearer " + f.token}}
	conn, _, err := f.dial(t, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First chunk produces the scripted interim.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Event != models.EventTranscript {
		t.Fatalf("expected transcript event, got %q", env.Event)
	}
	if env.Data == nil || env.Data.Transcript != "hel" || env.Data.IsFinal {
		t.Fatalf("expected interim {hel, false}, got %+v", env.Data)
	}

	// Second chunk exhausts the script and produces the final.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x03}); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	env = readEnvelope(t, conn)
	if env.Event != models.EventTranscript {
		t.Fatalf("expected transcript event, got %q", env.Event)
	}
	final := env.Data
	if final == nil || !final.IsFinal {
		t.Fatalf("expected final transcript, got %+v", final)
	}
	if final.Transcript != "hello world" {
		t.Errorf("expected transcript 'hello world', got %q", final.Transcript)
	}
	if final.SpeechClarity != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", final.SpeechClarity)
	}
	// 2 words over 2.0s spoken time.
	if final.SpeedWPM == nil || *final.SpeedWPM != 60 {
		t.Errorf("expected segment rate 60, got %v", final.SpeedWPM)
	}
	if final.AverageSpeedWPM != 60 {
		t.Errorf("expected running average 60, got %v", final.AverageSpeedWPM)
	}

	// Client signals completion; the engine ends and the relay confirms.
	done, _ := json.Marshal(models.Envelope{Event: models.EventClientCompleted})
	if err := conn.WriteMessage(websocket.TextMessage, done); err != nil {
		t.Fatalf("write client_completed: %v", err)
	}
	env = readEnvelope(t, conn)
	if env.Event != models.EventServerCompleted {
		t.Fatalf("expected server_completed, got %q", env.Event)
	}

	if got := atomic.LoadInt32(f.engineCount); got != 1 {
		t.Errorf("expected exactly one recognition stream, got %d", got)
	}
}
