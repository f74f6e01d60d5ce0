package streams

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NewEvent is an event submitted for append. It is immutable once built;
// use MakeEvent so that validation fails fast.
type NewEvent struct {
	EventID      uuid.UUID
	Type         string
	JSONData     string
	JSONMetadata string
}

// MakeEvent validates and builds a NewEvent.
// eventID must not be uuid.Nil; eventType and jsonData must be non-empty.
// jsonMetadata may be empty.
func MakeEvent(eventID uuid.UUID, eventType, jsonData, jsonMetadata string) (NewEvent, error) {
	e := NewEvent{
		EventID:      eventID,
		Type:         eventType,
		JSONData:     jsonData,
		JSONMetadata: jsonMetadata,
	}
	if err := e.Validate(); err != nil {
		return NewEvent{}, err
	}
	return e, nil
}

// MustMakeEvent is like MakeEvent but panics on invalid input.
// Use only in tests.
func MustMakeEvent(eventID uuid.UUID, eventType, jsonData, jsonMetadata string) NewEvent {
	e, err := MakeEvent(eventID, eventType, jsonData, jsonMetadata)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate checks the required fields. Events built as struct literals are
// validated again at the store boundary.
func (e NewEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return InvalidArgument("eventId", "must not be nil")
	}
	if e.Type == "" {
		return InvalidArgument("type", "must not be empty")
	}
	if e.JSONData == "" {
		return InvalidArgument("jsonData", "must not be empty")
	}
	// Invalid UTF-8 would be rewritten to U+FFFD on the way to the backend.
	if !utf8.ValidString(e.Type) {
		return InvalidArgument("type", "must be valid UTF-8")
	}
	if !utf8.ValidString(e.JSONData) {
		return InvalidArgument("jsonData", "must be valid UTF-8")
	}
	if !utf8.ValidString(e.JSONMetadata) {
		return InvalidArgument("jsonMetadata", "must be valid UTF-8")
	}
	return nil
}

// ValidateEvents checks a batch submitted for append. A nil slice is
// rejected; an empty one is allowed.
func ValidateEvents(events []NewEvent) error {
	if events == nil {
		return InvalidArgument("events", "must not be nil")
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	return nil
}
