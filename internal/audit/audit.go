// Package audit keeps an append-only trail of changes made to appointments,
// including the reason an operator or the chat assistant gave for each edit.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of change recorded.
type EventType string

const (
	EventAppointmentCreated   EventType = "appointment.created"
	EventAppointmentUpdated   EventType = "appointment.updated"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentCompleted EventType = "appointment.completed"
)

// Event is an immutable audit record.
type Event struct {
	ID            string          `json:"id"`
	EventType     EventType       `json:"event_type"`
	AppointmentID string          `json:"appointment_id"`
	Actor         string          `json:"actor,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Change captures one field edit in an update event.
type Change struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Service writes audit events through database/sql.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record stores an audit event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO appointment_audit_events (
			id, event_type, appointment_id, actor, reason, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AppointmentID,
		nullString(event.Actor),
		nullString(event.Reason),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}

// RecordChanges logs an update event listing the fields that changed.
func (s *Service) RecordChanges(ctx context.Context, appointmentID, actor, reason string, changes []Change) error {
	details, _ := json.Marshal(map[string]any{"changes": changes})
	return s.Record(ctx, Event{
		EventType:     EventAppointmentUpdated,
		AppointmentID: appointmentID,
		Actor:         actor,
		Reason:        reason,
		Details:       details,
	})
}

// ListForAppointment returns the trail for one appointment, oldest first.
func (s *Service) ListForAppointment(ctx context.Context, appointmentID string) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, appointment_id, COALESCE(actor, ''), COALESCE(reason, ''), details, created_at
		FROM appointment_audit_events
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev      Event
			details []byte
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Actor, &ev.Reason, &details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		if len(details) > 0 {
			ev.Details = json.RawMessage(details)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
