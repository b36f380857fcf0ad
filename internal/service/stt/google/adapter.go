// Package google provides a Google Cloud Speech-to-Text engine adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-relay-service/internal/service/stt"
)

// Config is the fixed streaming configuration sent at the start of every
// recognition stream. Word time offsets and punctuation stay enabled;
// the enrichment layer depends on them.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	AudioEncoding  string
	InterimResults bool
}

// DefaultConfig returns the streaming configuration used when none is
// supplied.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		AudioEncoding:  "WEBM_OPUS",
		InterimResults: true,
	}
}

// Factory creates one Engine per session around a shared speech client.
// The client and its credentials are built once at startup and reused;
// sessions never reparse credential material.
type Factory struct {
	client *speech.Client
	cfg    Config
}

// NewFactory builds the shared speech client. credentialsJSON may be
// empty, in which case application default credentials apply.
func NewFactory(ctx context.Context, cfg Config, credentialsJSON string) (*Factory, error) {
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Factory{client: client, cfg: cfg}, nil
}

// NewEngine returns a fresh engine for one session.
func (f *Factory) NewEngine() stt.Engine {
	return &Adapter{client: f.client, cfg: f.cfg}
}

// Close releases the shared client. Call once at shutdown, after all
// sessions are done.
func (f *Factory) Close() error {
	return f.client.Close()
}

// Adapter implements stt.Engine using Google Cloud Speech-to-Text.
// It owns one streaming recognition stream; the shared client is not
// closed by the adapter.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	closed bool
	stream speechpb.Speech_StreamingRecognizeClient
}

// Start opens the recognition stream, sends the streaming config as the
// first message and launches the receive loop.
func (a *Adapter) Start(ctx context.Context, cb Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return fmt.Errorf("open recognition stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:            int32(a.cfg.SampleRateHz),
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
					EnableWordTimeOffsets:      true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return fmt.Errorf("send streaming config: %w", err)
	}

	a.mu.Lock()
	a.stream = stream
	a.mu.Unlock()

	go a.receive(stream, cb)
	return nil
}

// SendAudio forwards one audio chunk to the recognition stream.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return io.ErrClosedPipe
	}
	if a.stream == nil {
		return errors.New("recognition stream not started")
	}
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the audio side of the stream. Idempotent; the
// receive loop keeps draining results until the provider ends the stream.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.stream == nil {
		return nil
	}
	return a.stream.CloseSend()
}

// receive drains the result stream and maps responses onto callbacks.
func (a *Adapter) receive(stream speechpb.Speech_StreamingRecognizeClient, cb Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			if isStreamEnd(err) {
				cb.OnEnd()
				return
			}
			cb.OnError(err)
			return
		}
		for _, r := range resp.GetResults() {
			cb.OnResult(mapResult(r))
		}
	}
}

// Callback aliases the engine boundary type for readability in this file.
type Callback = stt.Callback

// mapResult converts a provider result into the strict boundary type.
func mapResult(r *speechpb.StreamingRecognitionResult) stt.Result {
	out := stt.Result{IsFinal: r.GetIsFinal()}
	for _, alt := range r.GetAlternatives() {
		a := stt.Alternative{
			Transcript: alt.GetTranscript(),
			Confidence: float64(alt.GetConfidence()),
		}
		for _, w := range alt.GetWords() {
			a.Words = append(a.Words, stt.Word{
				Text:  w.GetWord(),
				Start: w.GetStartTime().AsDuration().Seconds(),
				End:   w.GetEndTime().AsDuration().Seconds(),
			})
		}
		out.Alternatives = append(out.Alternatives, a)
	}
	return out
}

// isStreamEnd reports whether the receive error marks a normal end of
// stream: provider EOF, or the session context being torn down.
func isStreamEnd(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}

// parseAudioEncoding maps a config string to the provider enum.
// Unknown values fall back to ENCODING_UNSPECIFIED and the provider
// rejects them at stream setup.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		log.Warn().Str("encoding", s).Msg("Unknown audio encoding")
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
