package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

const channelPrefix = "zonecast"

type messageKind string

const (
	kindEvent    messageKind = "event"
	kindRequest  messageKind = "request"
	kindResponse messageKind = "response"
)

// envelope is the JSON body of every message published on a zone channel.
type envelope struct {
	ID          string           `json:"id"`
	Source      string           `json:"source"`
	Kind        messageKind      `json:"kind"`
	ObjectType  string           `json:"object_type"`
	Action      string           `json:"action,omitempty"`
	Query       *broadcast.Query `json:"query,omitempty"`
	ReplyTo     string           `json:"reply_to,omitempty"`
	Records     []string         `json:"records,omitempty"`
	MorePackets bool             `json:"more_packets,omitempty"`
	Error       *protocolError   `json:"error,omitempty"`
}

type protocolError struct {
	Category     int    `json:"category"`
	Code         int    `json:"code"`
	Desc         string `json:"desc"`
	ExtendedDesc string `json:"extended_desc,omitempty"`
}

func (e *protocolError) toBroadcast() *broadcast.ProtocolError {
	if e == nil {
		return nil
	}
	return &broadcast.ProtocolError{Category: e.Category, Code: e.Code, Desc: e.Desc, ExtendedDesc: e.ExtendedDesc}
}

func eventChannel(zoneID, objectType string) string {
	return fmt.Sprintf("%s:%s:event:%s", channelPrefix, zoneID, objectType)
}

func requestChannel(zoneID, objectType string) string {
	return fmt.Sprintf("%s:%s:request:%s", channelPrefix, zoneID, objectType)
}

func responseChannel(zoneID, agentID string) string {
	return fmt.Sprintf("%s:%s:response:%s", channelPrefix, zoneID, agentID)
}

func agentsKey(zoneID string) string {
	return fmt.Sprintf("%s:%s:agents", channelPrefix, zoneID)
}

func encodeRecords(records ...broadcast.Record) ([]string, error) {
	out := make([]string, 0, len(records))
	for _, r := range records {
		b, err := r.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("encode %s record: %w", r.ObjectType(), err)
		}
		out = append(out, string(b))
	}
	return out, nil
}

func decodeEnvelope(payload string) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if env.ID == "" || env.ObjectType == "" {
		return nil, fmt.Errorf("%w: missing id or object type", ErrInvalidEnvelope)
	}
	switch env.Kind {
	case kindEvent, kindResponse:
	case kindRequest:
		if env.Query == nil || env.ReplyTo == "" {
			return nil, fmt.Errorf("%w: request without query or reply channel", ErrInvalidEnvelope)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, env.Kind)
	}
	return &env, nil
}

// payloadStream decodes records lazily as the handler reads them.
type payloadStream struct {
	objectType string
	payloads   []string
	factory    broadcast.RecordFactory
	pos        int
}

func (s *payloadStream) Available() bool { return s.pos < len(s.payloads) }

func (s *payloadStream) Read(_ context.Context) (broadcast.Record, error) {
	if s.pos >= len(s.payloads) {
		return nil, nil
	}
	p := s.payloads[s.pos]
	s.pos++
	if s.factory == nil {
		return &rawRecord{objectType: s.objectType, text: []byte(p)}, nil
	}
	rec := s.factory()
	if err := rec.UnmarshalText([]byte(p)); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", s.objectType, err)
	}
	return rec, nil
}

// rawRecord carries a payload when no record factory was registered.
type rawRecord struct {
	objectType string
	text       []byte
}

func (r *rawRecord) ObjectType() string { return r.objectType }
func (r *rawRecord) MarshalText() ([]byte, error) { return slices.Clone(r.text), nil }

func versionsMatch(supported, requested []string) bool {
	if len(supported) == 0 || len(requested) == 0 {
		return true
	}
	for _, v := range requested {
		if slices.Contains(supported, v) {
			return true
		}
	}
	return false
}

func split(records []string, size int) [][]string {
	if size <= 0 || len(records) <= size {
		return [][]string{records}
	}
	return slices.Collect(slices.Chunk(records, size))
}
