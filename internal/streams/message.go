package streams

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PayloadLoader returns the JSON data of a stored message.
type PayloadLoader func(ctx context.Context) (string, error)

// errNoPayloadLoader is returned by GetJSONData on a zero StoredMessage.
var errNoPayloadLoader = errors.New("stored message has no payload loader")

// StoredMessage is a message read back from the store.
//
// The payload is either prefetched with the page, or fetched by
// GetJSONData with one extra round trip per call. Lazy loads are not cached.
type StoredMessage struct {
	StreamID      string
	EventID       uuid.UUID
	StreamVersion int32
	Position      int64
	CreatedUTC    time.Time
	Type          string
	JSONMetadata  string

	loader     PayloadLoader
	prefetched bool
}

// NewStoredMessage builds a message whose payload is resolved by loader.
func NewStoredMessage(
	streamID string,
	eventID uuid.UUID,
	streamVersion int32,
	position int64,
	createdUTC time.Time,
	eventType string,
	jsonMetadata string,
	loader PayloadLoader,
) StoredMessage {
	return StoredMessage{
		StreamID:      streamID,
		EventID:       eventID,
		StreamVersion: streamVersion,
		Position:      position,
		CreatedUTC:    createdUTC,
		Type:          eventType,
		JSONMetadata:  jsonMetadata,
		loader:        loader,
	}
}

// NewPrefetchedMessage builds a message whose payload was read with the page.
func NewPrefetchedMessage(
	streamID string,
	eventID uuid.UUID,
	streamVersion int32,
	position int64,
	createdUTC time.Time,
	eventType string,
	jsonMetadata string,
	jsonData string,
) StoredMessage {
	m := NewStoredMessage(streamID, eventID, streamVersion, position, createdUTC, eventType, jsonMetadata,
		func(context.Context) (string, error) { return jsonData, nil })
	m.prefetched = true
	return m
}

// Prefetched reports whether the payload was loaded with the page.
func (m StoredMessage) Prefetched() bool {
	return m.prefetched
}

// GetJSONData returns the message payload. For lazily loaded messages every
// call performs its own read.
func (m StoredMessage) GetJSONData(ctx context.Context) (string, error) {
	if m.loader == nil {
		return "", errNoPayloadLoader
	}
	return m.loader(ctx)
}
