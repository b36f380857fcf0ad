// Package schema validates outbound event payloads before they leave
// the service.
package schema

import (
	"errors"
	"fmt"

	"speech-relay-service/internal/models"
)

var errUnknownEvent = errors.New("unknown event payload type")

// Validator checks required fields on mirrored transcript events.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate returns an error when a known event type is missing required
// fields. Unknown payload types are rejected so that a malformed or
// untyped event never reaches the bus.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TranscriptPartial:
		return validatePartial(e)
	case *models.TranscriptPartial:
		return validatePartial(*e)
	case models.TranscriptFinal:
		return validateFinal(e)
	case *models.TranscriptFinal:
		return validateFinal(*e)
	default:
		return fmt.Errorf("%w: %T", errUnknownEvent, event)
	}
}

func validatePartial(e models.TranscriptPartial) error {
	if e.EventType == "" {
		return errors.New("partial event missing eventType")
	}
	if e.SessionID == "" {
		return errors.New("partial event missing sessionId")
	}
	if e.Timestamp <= 0 {
		return errors.New("partial event missing timestamp")
	}
	return nil
}

func validateFinal(e models.TranscriptFinal) error {
	if e.EventType == "" {
		return errors.New("final event missing eventType")
	}
	if e.SessionID == "" {
		return errors.New("final event missing sessionId")
	}
	if e.Timestamp <= 0 {
		return errors.New("final event missing timestamp")
	}
	if e.SpeechClarity < 0 || e.SpeechClarity > 1 {
		return fmt.Errorf("final event confidence out of range: %v", e.SpeechClarity)
	}
	return nil
}
