// Package events publishes clip lifecycle notifications (created, removed) to
// NATS so other services can react without polling the store. Publication is
// best-effort: a failed publish is logged and never fails the request that
// triggered it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/domain"
)

// Event types.
const (
	TypeCreated = "created"
	TypeRemoved = "removed"
)

const defaultConnectTimeout = 5 * time.Second

// Event is the JSON payload published for each lifecycle change. The clip text
// is never included.
type Event struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	At        time.Time  `json:"at"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(e Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
func (NopPublisher) Close() error        { return nil }

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events on "<prefix>.<type>" subjects.
type NATSPublisher struct {
	nc     conn
	prefix string
}

// ConnectNATS dials url and returns a publisher for subjectPrefix.
func ConnectNATS(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(defaultConnectTimeout),
		nats.Name("quickclip"),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	return NewNATSPublisher(nc, subjectPrefix), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc conn, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "quickclip.clips"
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix}
}

// Subject returns the subject an event of type typ is published on.
func (p *NATSPublisher) Subject(typ string) string { return p.prefix + "." + typ }

func (p *NATSPublisher) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.Subject(e.Type), data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error { return p.nc.Drain() }

// Hooks adapts p to the store's lifecycle callbacks.
func Hooks(p Publisher) clip.Hooks {
	publish := func(e Event) {
		e.ID = uuid.NewString()
		e.At = time.Now().UTC()
		if err := p.Publish(e); err != nil {
			log.Warn().Err(err).Str("component", "events").Str("type", e.Type).Msg("publish failed")
		}
	}
	return clip.Hooks{
		OnCreate: func(c domain.Clip) {
			exp := c.ExpiresAt
			publish(Event{Type: TypeCreated, Code: c.Code, ExpiresAt: &exp})
		},
		OnRemove: func(code string, reason clip.RemoveReason) {
			publish(Event{Type: TypeRemoved, Code: code, Reason: string(reason)})
		},
	}
}
