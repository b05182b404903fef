// Package digest sends the spa owner a nightly summary of the next day's
// bookings.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/wolfman30/spa-desk/internal/appointments"
	"github.com/wolfman30/spa-desk/internal/timeparse"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

// DefaultSchedule runs at 8 PM in the spa's timezone.
const DefaultSchedule = "0 20 * * *"

// Lister returns the appointments booked on a date.
type Lister interface {
	ListByDate(ctx context.Context, date string) ([]*appointments.Appointment, error)
}

// Notifier delivers a composed digest.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier writes digests to the structured log.
type LogNotifier struct {
	Logger *logging.Logger
}

func (n LogNotifier) Notify(_ context.Context, subject, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("schedule digest", "subject", subject, "body", body)
	return nil
}

// Job composes and sends the digest for the day after "now".
type Job struct {
	lister   Lister
	notifier Notifier
	logger   *logging.Logger
	loc      *time.Location
	now      func() time.Time
	timeout  time.Duration
}

func NewJob(lister Lister, notifier Notifier, loc *time.Location, logger *logging.Logger) *Job {
	if lister == nil || notifier == nil {
		panic("digest: lister and notifier required")
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Job{
		lister:   lister,
		notifier: notifier,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
		timeout:  30 * time.Second,
	}
}

// Run sends tomorrow's digest. It satisfies cron.Job.
func (j *Job) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.Send(ctx); err != nil {
		j.logger.Error("schedule digest failed", "error", err)
	}
}

// Send composes and delivers the digest for tomorrow.
func (j *Job) Send(ctx context.Context) error {
	day := timeparse.StartOfDay(j.now().In(j.loc)).AddDate(0, 0, 1)
	subject, body, err := j.Compose(ctx, day)
	if err != nil {
		return err
	}
	if err := j.notifier.Notify(ctx, subject, body); err != nil {
		return fmt.Errorf("digest: notify: %w", err)
	}
	return nil
}

// Compose renders the digest for day. Cancelled appointments are left out.
func (j *Job) Compose(ctx context.Context, day time.Time) (string, string, error) {
	date := timeparse.FormatCanonicalDate(day)
	appts, err := j.lister.ListByDate(ctx, date)
	if err != nil {
		return "", "", fmt.Errorf("digest: list appointments: %w", err)
	}

	subject := fmt.Sprintf("Schedule for %s", day.Format("Monday, Jan 2"))
	var (
		b     strings.Builder
		count int
		total = decimal.Zero
	)
	for _, a := range appts {
		if a.Status == appointments.StatusCancelled {
			continue
		}
		count++
		total = total.Add(a.Payment)
		fmt.Fprintf(&b, "%s  %s  %s\n", a.Time, a.Client, a.Category)
	}
	if count == 0 {
		return subject, "No appointments booked.", nil
	}
	fmt.Fprintf(&b, "%d appointment(s), expected $%s", count, total.StringFixed(2))
	return subject, b.String(), nil
}

// Scheduler owns the cron runner for the digest.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
}

// Schedule registers job on spec in loc. An empty spec uses DefaultSchedule.
func Schedule(spec string, loc *time.Location, job cron.Job) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddJob(spec, cron.NewChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job)); err != nil {
		return nil, fmt.Errorf("digest: invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, loc: loc}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the runner and waits for a running digest up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next reports when the digest will run next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if next := entries[0].Next; !next.IsZero() {
		return next
	}
	// The runner fills in Next only once started.
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}
