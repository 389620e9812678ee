// Package schema validates outbound session events before they reach a client.
package schema

import (
	"errors"
	"fmt"

	"live-transcription-service/internal/models"
)

var (
	ErrUnknownType    = errors.New("unknown event type")
	ErrMissingText    = errors.New("transcript event without text")
	ErrMissingMessage = errors.New("error event without message")
	ErrUnexpectedText = errors.New("ready event must not carry text")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the shape of ev against the wire protocol.
func (v *Validator) Validate(ev models.TranscriptEvent) error {
	switch ev.Type {
	case models.EventReady:
		if ev.Text != nil {
			return ErrUnexpectedText
		}
	case models.EventPartial, models.EventFinal:
		if ev.Text == nil {
			return fmt.Errorf("%w: %s", ErrMissingText, ev.Type)
		}
	case models.EventError:
		if ev.Message == "" {
			return ErrMissingMessage
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
	return nil
}
