// Package audit records security-relevant token events: logins, rotations,
// revocations and detected refresh-token theft.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/logging"
)

type EventType string

const (
	EventLogin         EventType = "login"
	EventRefresh       EventType = "refresh"
	EventTheftDetected EventType = "theft_detected"
	EventTokenRevoked  EventType = "token_revoked"
	EventLogout        EventType = "logout"
)

// Event never carries token strings, only token ids.
type Event struct {
	Type        EventType `json:"type"`
	UserID      int64     `json:"userId"`
	TokenID     string    `json:"tokenId,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	DeviceClass string    `json:"deviceClass,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	At          time.Time `json:"at"`
}

// Sink accepts events. Record must not block on remote I/O for long; slow
// backends buffer and flush separately.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "audit")}
}

func (s *LogSink) Record(ctx context.Context, e Event) error {
	args := []any{"event", string(e.Type), "user_id", e.UserID}
	if e.TokenID != "" {
		args = append(args, "jti", e.TokenID)
	}
	if e.IPAddress != "" {
		args = append(args, "ip", e.IPAddress)
	}
	if e.DeviceClass != "" {
		args = append(args, "device_class", e.DeviceClass)
	}
	if e.Type == EventTheftDetected {
		s.logger.Warn(ctx, "security event", args...)
		return nil
	}
	s.logger.Info(ctx, "security event", args...)
	return nil
}

// Tee fans an event out to every sink and joins their errors.
type Tee []Sink

func (t Tee) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
