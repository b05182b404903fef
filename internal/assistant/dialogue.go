package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-desk/internal/appointments"
	"github.com/wolfman30/spa-desk/internal/observability/metrics"
	"github.com/wolfman30/spa-desk/internal/timeparse"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

const chatCancelReason = "Cancelled via chat assistant"

var assistantTracer = otel.Tracer("spadesk.internal.assistant")

// Bookings is the slice of the appointments service the dialogue needs.
type Bookings interface {
	FindPending(ctx context.Context, match appointments.Match) ([]*appointments.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointments.Appointment, error)
}

// Sessions persists dialogue state between messages.
type Sessions interface {
	Load(ctx context.Context, sessionID string) (SessionState, error)
	Save(ctx context.Context, sessionID string, state SessionState) error
	Clear(ctx context.Context, sessionID string) error
}

// Reply is what the assistant says back.
type Reply struct {
	Text       string     `json:"text"`
	Intent     IntentKind `json:"intent"`
	Confidence float64    `json:"confidence"`
	Action     string     `json:"action"`
	// Silent asks the widget to stop prompting until the user writes again.
	Silent bool `json:"silent,omitempty"`
}

// Assistant runs the cancel-by-chat dialogue.
type Assistant struct {
	bookings    Bookings
	sessions    Sessions
	transcripts *TranscriptStore
	metrics     *metrics.ChatMetrics
	logger      *logging.Logger
	now         func() time.Time
	loc         *time.Location
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithTranscripts records every exchange in store.
func WithTranscripts(store *TranscriptStore) Option {
	return func(a *Assistant) { a.transcripts = store }
}

// WithMetrics counts intents and dialogue actions.
func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the time source used to resolve date phrases.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
		if loc != nil {
			a.loc = loc
		}
	}
}

// New creates an Assistant.
func New(bookings Bookings, sessions Sessions, opts ...Option) *Assistant {
	if bookings == nil || sessions == nil {
		panic("assistant: bookings and sessions required")
	}
	a := &Assistant{
		bookings: bookings,
		sessions: sessions,
		logger:   logging.Default(),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle interprets one user message and advances the dialogue. Parse
// failures become a clarifying reply; only infrastructure failures are
// returned as errors.
func (a *Assistant) Handle(ctx context.Context, sessionID, text string) (Reply, error) {
	ctx, span := assistantTracer.Start(ctx, "assistant.handle")
	defer span.End()

	state, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	intent := Interpret(text, state.YearHint)
	span.SetAttributes(attribute.String("spadesk.intent", string(intent.Kind())))
	a.metrics.ObserveIntent(string(intent.Kind()))

	var reply Reply
	switch in := intent.(type) {
	case Cancel:
		reply, err = a.handleCancel(ctx, sessionID, &state, in)
	case Affirmative:
		reply, err = a.handleConfirm(ctx, sessionID, &state)
	case Stop:
		reply, err = a.handleStop(ctx, sessionID)
	default:
		reply = Reply{
			Text:   "I can cancel appointments. Try \"cancel the appointment for Jane Doe at 2:00 PM on August 19th\".",
			Action: "help",
		}
		if state.Pending != nil {
			state.Pending = nil
			reply, err = a.save(ctx, sessionID, &state, reply)
		}
	}
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	reply.Intent = intent.Kind()
	reply.Confidence = intent.Confidence()
	a.metrics.ObserveAction(reply.Action)
	a.record(ctx, sessionID, text, reply)
	return reply, nil
}

// handleCancel drops any earlier pending cancellation before looking up the
// new one, so a later "yes" only ever confirms the appointment just offered.
func (a *Assistant) handleCancel(ctx context.Context, sessionID string, state *SessionState, in Cancel) (Reply, error) {
	state.Pending = nil
	match := appointments.Match{Client: in.ClientName}

	if in.Time != "" {
		clock, err := timeparse.NormalizeTime(in.Time)
		if err != nil {
			return a.save(ctx, sessionID, state, a.rephrase(err))
		}
		match.Time = clock
	}
	if in.Date != "" {
		if in.Year != "" {
			state.YearHint = in.Year
		}
		res, err := timeparse.ParseDatePhrase(in.Date, in.Year, a.now().In(a.loc))
		if err != nil {
			return a.save(ctx, sessionID, state, a.rephrase(err))
		}
		match.Date = res.FormattedDate
	}

	found, err := a.bookings.FindPending(ctx, match)
	if err != nil {
		if saveErr := a.sessions.Save(ctx, sessionID, *state); saveErr != nil {
			a.logger.Warn("failed to clear pending cancellation", "error", saveErr, "session_id", sessionID)
		}
		return Reply{}, err
	}

	switch len(found) {
	case 0:
		return a.save(ctx, sessionID, state, Reply{
			Text:   fmt.Sprintf("I couldn't find a pending appointment for %s%s.", in.ClientName, describeMatch(match)),
			Action: "not_found",
		})
	case 1:
		appt := found[0]
		state.Pending = &PendingCancellation{
			AppointmentID: appt.ID.String(),
			Client:        appt.Client,
			Date:          appt.Date,
			Time:          appt.Time,
		}
		return a.save(ctx, sessionID, state, Reply{
			Text:   fmt.Sprintf("Cancel %s's %s appointment at %s on %s? Reply yes to confirm.", appt.Client, appt.Category, appt.Time, appt.Date),
			Action: "confirm_requested",
		})
	default:
		return a.save(ctx, sessionID, state, Reply{
			Text:   fmt.Sprintf("%s has %d pending appointments%s. Which time and date should I cancel?", in.ClientName, len(found), describeMatch(match)),
			Action: "ambiguous",
		})
	}
}

// save persists state and then answers with reply.
func (a *Assistant) save(ctx context.Context, sessionID string, state *SessionState, reply Reply) (Reply, error) {
	if err := a.sessions.Save(ctx, sessionID, *state); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (a *Assistant) handleConfirm(ctx context.Context, sessionID string, state *SessionState) (Reply, error) {
	if state.Pending == nil {
		return Reply{Text: "Nothing to confirm right now.", Action: "nothing_to_confirm"}, nil
	}
	pending := *state.Pending

	state.Pending = nil
	if err := a.sessions.Save(ctx, sessionID, *state); err != nil {
		return Reply{}, err
	}

	id, err := uuid.Parse(pending.AppointmentID)
	if err != nil {
		a.logger.Warn("dropping malformed pending cancellation", "session_id", sessionID, "appointment_id", pending.AppointmentID)
		return Reply{Text: "Nothing to confirm right now.", Action: "nothing_to_confirm"}, nil
	}

	if _, err := a.bookings.Cancel(ctx, id, chatCancelReason); err != nil {
		if errors.Is(err, appointments.ErrNotFound) || errors.Is(err, appointments.ErrInvalidTransition) {
			return Reply{Text: "That appointment can no longer be cancelled.", Action: "stale"}, nil
		}
		return Reply{}, err
	}

	a.logger.Info("appointment cancelled via chat", "session_id", sessionID, "appointment_id", id)
	return Reply{
		Text:   fmt.Sprintf("Done. %s's appointment at %s on %s is cancelled.", pending.Client, pending.Time, pending.Date),
		Action: "cancelled",
	}, nil
}

func (a *Assistant) handleStop(ctx context.Context, sessionID string) (Reply, error) {
	if err := a.sessions.Clear(ctx, sessionID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Okay. I'm here if you need me.", Action: "stopped", Silent: true}, nil
}

func (a *Assistant) rephrase(err error) Reply {
	var pe *timeparse.ParseError
	if errors.As(err, &pe) {
		return Reply{
			Text:   fmt.Sprintf("Sorry, I didn't understand %q. Could you rephrase?", pe.Input),
			Action: "rephrase",
		}
	}
	return Reply{Text: "Sorry, could you rephrase that?", Action: "rephrase"}
}

func (a *Assistant) record(ctx context.Context, sessionID, text string, reply Reply) {
	if a.transcripts == nil {
		return
	}
	now := a.now().UTC()
	msgs := []Message{
		{Role: "user", Body: text, Intent: string(reply.Intent), Timestamp: now},
		{Role: "assistant", Body: reply.Text, Timestamp: now},
	}
	for _, msg := range msgs {
		if err := a.transcripts.Append(ctx, sessionID, msg); err != nil {
			a.logger.Warn("failed to append chat transcript", "error", err, "session_id", sessionID)
			return
		}
	}
}

// History returns the last limit transcript messages for sessionID.
func (a *Assistant) History(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	return a.transcripts.List(ctx, sessionID, limit)
}

func describeMatch(m appointments.Match) string {
	switch {
	case m.Date != "" && m.Time != "":
		return " at " + m.Time + " on " + m.Date
	case m.Time != "":
		return " at " + m.Time
	case m.Date != "":
		return " on " + m.Date
	}
	return ""
}
