// Package notification delivers email notifications for state transitions:
// lab request assigned/completed/canceled, appointment booked. Delivery is
// fire-and-forget; a failed send is logged and retried but never propagates
// into the transaction that triggered it.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventKind identifies the transition that triggered a notification.
type EventKind string

const (
	EventLabRequestCreated   EventKind = "lab_request.created"
	EventLabRequestAssigned  EventKind = "lab_request.assigned"
	EventLabRequestCompleted EventKind = "lab_request.completed"
	EventLabRequestCanceled  EventKind = "lab_request.canceled"
	EventAppointmentBooked   EventKind = "appointment.booked"
)

// Notifier is the contract domain services depend on. Notify must never
// block the caller on delivery and must never return delivery errors.
type Notifier interface {
	Notify(kind EventKind, recipient string, data map[string]string)
}

// EmailSender sends a single message. SMTP, SES, or a log-only sender in
// development.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogSender writes would-be emails to the log. Default sender when no SMTP
// relay is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (log sender)")
	return nil
}

// Template is a reusable notification template with {{key}} placeholders.
type Template struct {
	Kind    EventKind
	Subject string
	Body    string
}

var builtinTemplates = map[EventKind]Template{
	EventLabRequestCreated: {
		Kind:    EventLabRequestCreated,
		Subject: "Lab request opened: {{file_title}}",
		Body:    "A lab request for {{patient_name}} ({{file_title}}) was opened and is awaiting a laborant.",
	},
	EventLabRequestAssigned: {
		Kind:    EventLabRequestAssigned,
		Subject: "Lab request assigned: {{file_title}}",
		Body:    "The lab request for {{patient_name}} ({{file_title}}) is now assigned to {{laborant_name}}.",
	},
	EventLabRequestCompleted: {
		Kind:    EventLabRequestCompleted,
		Subject: "Lab results ready: {{file_title}}",
		Body:    "Results for {{patient_name}} ({{file_title}}) have been uploaded and the request is complete.",
	},
	EventLabRequestCanceled: {
		Kind:    EventLabRequestCanceled,
		Subject: "Lab request canceled: {{file_title}}",
		Body:    "The lab request for {{patient_name}} ({{file_title}}) was canceled.",
	},
	EventAppointmentBooked: {
		Kind:    EventAppointmentBooked,
		Subject: "Appointment confirmed",
		Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} is confirmed.",
	},
}

// Render substitutes {{key}} placeholders. Keys absent from data stay as-is.
func (t Template) Render(data map[string]string) (subject, body string) {
	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body
}

// Record is a dispatched notification kept in the in-memory outbox for
// inspection and retry accounting.
type Record struct {
	ID        string     `json:"id"`
	Kind      EventKind  `json:"kind"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"` // pending, sent, failed
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Manager renders templates and dispatches asynchronously with bounded
// retries. Implements Notifier.
type Manager struct {
	sender      EmailSender
	logger      zerolog.Logger
	maxAttempts int
	sendTimeout time.Duration

	mu      sync.RWMutex
	outbox  map[string]*Record
	pending sync.WaitGroup
}

func NewManager(sender EmailSender, logger zerolog.Logger) *Manager {
	return &Manager{
		sender:      sender,
		logger:      logger,
		maxAttempts: 3,
		sendTimeout: 10 * time.Second,
		outbox:      make(map[string]*Record),
	}
}

// Notify renders the template for kind and dispatches it in the background.
// Unknown kinds and delivery failures are logged, never returned.
func (m *Manager) Notify(kind EventKind, recipient string, data map[string]string) {
	tpl, ok := builtinTemplates[kind]
	if !ok {
		m.logger.Warn().Str("kind", string(kind)).Msg("no template for notification kind")
		return
	}
	if recipient == "" {
		return
	}

	subject, body := tpl.Render(data)
	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.outbox[rec.ID] = rec
	m.mu.Unlock()

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.deliver(rec)
	}()
}

func (m *Manager) deliver(rec *Record) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
		err := m.sender.SendEmail(ctx, rec.Recipient, rec.Subject, rec.Body)
		cancel()

		m.mu.Lock()
		rec.Attempts = attempt
		m.mu.Unlock()

		if err == nil {
			now := time.Now().UTC()
			m.mu.Lock()
			rec.Status = "sent"
			rec.SentAt = &now
			m.mu.Unlock()
			return
		}
		lastErr = err
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	m.mu.Lock()
	rec.Status = "failed"
	rec.Error = lastErr.Error()
	m.mu.Unlock()
	m.logger.Error().
		Err(lastErr).
		Str("kind", string(rec.Kind)).
		Str("recipient", rec.Recipient).
		Msg("notification delivery failed")
}

// Flush blocks until all in-flight deliveries finish. Used by tests and
// graceful shutdown.
func (m *Manager) Flush() {
	m.pending.Wait()
}

// Outbox returns a snapshot of all dispatched records.
func (m *Manager) Outbox() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.outbox))
	for _, r := range m.outbox {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// Get returns a single record by id.
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.outbox[id]
	if !ok {
		return nil, fmt.Errorf("notification %s not found", id)
	}
	cp := *r
	return &cp, nil
}
