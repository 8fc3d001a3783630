// Package notification delivers staff alerts by email and as in-app
// notifications, rendering both from the same templates.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/metrics"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

const (
	TemplateStageHandoff  = "stage-handoff"
	TemplateVisitReturned = "visit-returned"
)

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateStageHandoff,
			Name:    "Stage Handoff",
			Subject: "{{patient_name}} is waiting at {{stage}}",
			Body:    "Visit {{visit_number}} for {{patient_name}} was handed over from {{from_stage}} to {{stage}}. Notes: {{notes}}",
		},
		{
			ID:      TemplateVisitReturned,
			Name:    "Visit Returned to Front Desk",
			Subject: "{{patient_name}} has settled the bill",
			Body:    "Visit {{visit_number}} for {{patient_name}} is back at the front desk after a payment of {{amount}} ({{method}}).",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Message struct {
	To      string
	Subject string
	Body    string
}

// Outcome is the delivery result for one recipient.
type Outcome struct {
	Recipient string
	Err       error
}

// Notification is an in-app alert shown to one staff member.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecipientID uuid.UUID  `db:"recipient_id" json:"recipientId"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visitId,omitempty"`
	Read        bool       `db:"read" json:"read"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	ReadAt      *time.Time `db:"read_at" json:"readAt,omitempty"`
}

// Recipient is a staff member an alert is addressed to.
type Recipient struct {
	StaffID uuid.UUID
	Email   string
}

// Alert is one templated message fanned out to a set of staff.
type Alert struct {
	TemplateID string
	Data       map[string]string
	Recipients []Recipient
	VisitID    *uuid.UUID
}

// Report summarises an alert's deliveries.
type Report struct {
	EmailsSent   int
	EmailsFailed int
	InAppCreated int
	InAppFailed  int
	Errors       []error
}

// Err joins every delivery failure, or returns nil when all succeeded.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Dispatcher sends alerts through the email sender and the in-app store.
// Delivery is sequential and a failed recipient is not retried.
type Dispatcher struct {
	email     EmailSender
	store     Store
	templates *TemplateEngine
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewDispatcher(email EmailSender, store Store, tpl *TemplateEngine, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{email: email, store: store, templates: tpl, metrics: m, logger: logger}
}

// SendEmailBatch delivers each message in order and reports one outcome per
// message.
func (d *Dispatcher) SendEmailBatch(ctx context.Context, msgs []Message) []Outcome {
	out := make([]Outcome, 0, len(msgs))
	for _, m := range msgs {
		err := d.email.SendEmail(ctx, m.To, m.Subject, m.Body)
		d.metrics.Notification(string(ChannelEmail), err == nil)
		if err != nil {
			d.logger.Warn().Err(err).Str("recipient", m.To).Msg("email notification failed")
		}
		out = append(out, Outcome{Recipient: m.To, Err: err})
	}
	return out
}

// CreateInApp stores an in-app notification.
func (d *Dispatcher) CreateInApp(ctx context.Context, n *Notification) error {
	err := d.store.Create(ctx, n)
	d.metrics.Notification(string(ChannelInApp), err == nil)
	if err != nil {
		d.logger.Warn().Err(err).Str("recipient_id", n.RecipientID.String()).Msg("in-app notification failed")
	}
	return err
}

// Notify renders alert once and delivers it to every recipient by email and
// in-app. Recipients without an email address only get the in-app copy.
func (d *Dispatcher) Notify(ctx context.Context, alert Alert) Report {
	var r Report
	subject, body, err := d.templates.Render(alert.TemplateID, alert.Data)
	if err != nil {
		r.Errors = append(r.Errors, err)
		return r
	}

	var msgs []Message
	for _, rc := range alert.Recipients {
		if rc.Email != "" {
			msgs = append(msgs, Message{To: rc.Email, Subject: subject, Body: body})
		}
	}
	for _, o := range d.SendEmailBatch(ctx, msgs) {
		if o.Err != nil {
			r.EmailsFailed++
			r.Errors = append(r.Errors, fmt.Errorf("email %s: %w", o.Recipient, o.Err))
			continue
		}
		r.EmailsSent++
	}

	for _, rc := range alert.Recipients {
		n := &Notification{RecipientID: rc.StaffID, Title: subject, Body: body, VisitID: alert.VisitID}
		if err := d.CreateInApp(ctx, n); err != nil {
			r.InAppFailed++
			r.Errors = append(r.Errors, fmt.Errorf("in-app %s: %w", rc.StaffID, err))
			continue
		}
		r.InAppCreated++
	}
	return r
}

func (d *Dispatcher) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return d.store.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
}

func (d *Dispatcher) MarkRead(ctx context.Context, id, recipientID uuid.UUID) (*Notification, error) {
	return d.store.MarkRead(ctx, id, recipientID, time.Now().UTC())
}
