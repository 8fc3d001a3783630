// Package clocking moves visits between stages: staff clock in at the stage a
// visit is waiting at, hand it off to the next one, and billing settles it.
package clocking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/notification"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type VisitStore interface {
	GetVisit(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	ClockIn(ctx context.Context, actor auth.Actor, visitID uuid.UUID, notes string) (*visit.Visit, error)
	Save(ctx context.Context, v *visit.Visit) error
}

type AppointmentCompleter interface {
	Complete(ctx context.Context, id uuid.UUID) error
}

type PatientGetter interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type StaffDirectory interface {
	ActiveForRole(ctx context.Context, role string, branchID *uuid.UUID) ([]*staff.Staff, error)
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, visitID, staffID uuid.UUID, overrides *billing.PricingOverrides) (*billing.GenerateResult, error)
}

type InvoiceSettler interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	Settle(ctx context.Context, inv *billing.Invoice, req billing.SettleRequest) (*billing.Payment, error)
}

type Notifier interface {
	Notify(ctx context.Context, alert notification.Alert) notification.Report
}

// SideEffect reports a best-effort step that ran after the primary change was
// committed. A failed side effect never fails the request.
type SideEffect struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const (
	EffectNotifyStaff     = "notify_staff"
	EffectGenerateInvoice = "generate_invoice"
)

type Deps struct {
	Visits       VisitStore
	Appointments AppointmentCompleter
	Patients     PatientGetter
	Staff        StaffDirectory
	Invoices     InvoiceGenerator
	Billing      InvoiceSettler
	Notifier     Notifier
	Tx           Transactor
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{Deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// -- Clock-in --

func (s *Service) ClockIn(ctx context.Context, actor auth.Actor, visitID uuid.UUID, notes string) (*visit.Visit, error) {
	if visitID == uuid.Nil {
		return nil, apperr.Validation("visitId is required")
	}
	return s.Visits.ClockIn(ctx, actor, visitID, notes)
}

// -- Handoff --

type HandoffRequest struct {
	VisitID             uuid.UUID                 `json:"visitId"`
	TargetStage         string                    `json:"targetStage,omitempty"`
	Notes               string                    `json:"notes,omitempty"`
	NextAction          string                    `json:"nextAction,omitempty"`
	VitalSigns          *visit.VitalSigns         `json:"vitalSigns,omitempty"`
	Diagnosis           string                    `json:"diagnosis,omitempty"`
	AutoGenerateInvoice *bool                     `json:"autoGenerateInvoice,omitempty"`
	Pricing             *billing.PricingOverrides `json:"pricing,omitempty"`
}

type HandoffResult struct {
	Visit       *visit.Visit
	Transition  visit.Transition
	Invoice     *billing.Invoice
	SideEffects []SideEffect
}

// Handoff clocks the caller out of the visit's current stage and moves it on.
// Staff at the target stage are notified and a visit entering billing gets
// its invoice; both happen after the move is committed and cannot undo it.
func (s *Service) Handoff(ctx context.Context, actor auth.Actor, req HandoffRequest) (*HandoffResult, error) {
	if req.VisitID == uuid.Nil {
		return nil, apperr.Validation("visitId is required")
	}
	target, err := visit.ParseStage(req.TargetStage)
	if err != nil {
		return nil, err
	}

	var v *visit.Visit
	var tr visit.Transition
	err = s.Tx.WithTx(ctx, func(ctx context.Context) error {
		v, err = s.Visits.GetVisit(ctx, req.VisitID)
		if err != nil {
			return err
		}
		tr, err = v.Handoff(visit.HandoffInput{
			TargetStage: target,
			Notes:       strings.TrimSpace(req.Notes),
			NextAction:  strings.TrimSpace(req.NextAction),
			VitalSigns:  req.VitalSigns,
			Diagnosis:   strings.TrimSpace(req.Diagnosis),
		}, actor.StaffID, s.now())
		if err != nil {
			return err
		}
		if err := s.Visits.Save(ctx, v); err != nil {
			return err
		}
		if tr.Completed && v.AppointmentID != nil {
			return s.Appointments.Complete(ctx, *v.AppointmentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.Handoff(string(tr.From), string(tr.To))

	res := &HandoffResult{Visit: v, Transition: tr}
	log := s.Logger.With().
		Str("visit_id", v.ID.String()).
		Str("stage", string(tr.To)).
		Str("staff_id", actor.StaffID.String()).
		Logger()

	if !tr.Completed {
		res.SideEffects = append(res.SideEffects, s.notifyStage(ctx, log, v, tr.To, notification.TemplateStageHandoff, map[string]string{
			"from_stage": string(tr.From),
			"notes":      req.Notes,
		}))
	}

	if tr.To == visit.StageBilling && (req.AutoGenerateInvoice == nil || *req.AutoGenerateInvoice) {
		gen, err := s.Invoices.Generate(ctx, v.ID, actor.StaffID, req.Pricing)
		if err != nil {
			log.Error().Err(err).Msg("invoice generation after handoff failed")
			res.SideEffects = append(res.SideEffects, failed(EffectGenerateInvoice, err))
		} else {
			res.Invoice = gen.Invoice
			res.SideEffects = append(res.SideEffects, SideEffect{Name: EffectGenerateInvoice, OK: true})
		}
	}
	return res, nil
}

// -- Billing clock-in --

type BillingClockInRequest struct {
	VisitID         uuid.UUID                `json:"visitId"`
	InvoiceID       uuid.UUID                `json:"invoiceId"`
	PaymentAmount   *decimal.Decimal         `json:"paymentAmount"`
	PaymentMethod   billing.PaymentMethod    `json:"paymentMethod"`
	AdditionalItems []billing.AdditionalItem `json:"additionalItems,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
}

func (r BillingClockInRequest) missing() []string {
	var out []string
	if r.VisitID == uuid.Nil {
		out = append(out, "visitId")
	}
	if r.InvoiceID == uuid.Nil {
		out = append(out, "invoiceId")
	}
	if r.PaymentAmount == nil {
		out = append(out, "paymentAmount")
	}
	if r.PaymentMethod == "" {
		out = append(out, "paymentMethod")
	}
	return out
}

type BillingResult struct {
	Visit       *visit.Visit
	Payment     *billing.Payment
	Invoice     *billing.Invoice
	SideEffects []SideEffect
}

// BillingClockIn takes payment for a visit waiting at billing, adding any
// catalog items charged at the desk, and returns the visit to the front desk.
// The invoice, payment and visit are written in one transaction.
func (s *Service) BillingClockIn(ctx context.Context, actor auth.Actor, req BillingClockInRequest) (*BillingResult, error) {
	if m := req.missing(); len(m) > 0 {
		return nil, apperr.Validation("missing required fields: %s", strings.Join(m, ", "))
	}

	res := &BillingResult{}
	var tr visit.Transition
	err := s.Tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.Visits.GetVisit(ctx, req.VisitID)
		if err != nil {
			return err
		}
		inv, err := s.Billing.GetInvoice(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !actor.HasRole(auth.RoleBilling) {
			return apperr.Forbidden("only billing staff can clock in at billing")
		}
		if inv.EncounterID != v.ID {
			return apperr.Validation("invoice %s does not belong to visit %s", inv.InvoiceNumber, v.VisitNumber)
		}

		tr, err = v.SettleBilling(actor.StaffID, s.now(), strings.TrimSpace(req.Notes))
		if err != nil {
			return err
		}
		p, err := s.Billing.Settle(ctx, inv, billing.SettleRequest{
			VisitID:         v.ID,
			StaffID:         actor.StaffID,
			Amount:          *req.PaymentAmount,
			Method:          req.PaymentMethod,
			AdditionalItems: req.AdditionalItems,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}
		if err := s.Visits.Save(ctx, v); err != nil {
			return err
		}
		res.Visit, res.Payment, res.Invoice = v, p, inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.Handoff(string(tr.From), string(tr.To))

	log := s.Logger.With().
		Str("visit_id", res.Visit.ID.String()).
		Str("stage", string(tr.To)).
		Str("staff_id", actor.StaffID.String()).
		Logger()
	res.SideEffects = append(res.SideEffects, s.notifyStage(ctx, log, res.Visit, tr.To, notification.TemplateVisitReturned, map[string]string{
		"amount": res.Payment.Amount.StringFixed(2),
		"method": string(res.Payment.Method),
	}))
	return res, nil
}

// notifyStage alerts the active staff of the branch who work stage.
func (s *Service) notifyStage(ctx context.Context, log zerolog.Logger, v *visit.Visit, stage visit.Stage, templateID string, extra map[string]string) SideEffect {
	role := visit.RoleForStage(stage)
	if role == "" {
		return SideEffect{Name: EffectNotifyStaff, OK: true}
	}
	members, err := s.Staff.ActiveForRole(ctx, role, &v.BranchID)
	if err != nil {
		log.Warn().Err(err).Msg("loading notification recipients failed")
		return failed(EffectNotifyStaff, err)
	}
	if len(members) == 0 {
		return SideEffect{Name: EffectNotifyStaff, OK: true}
	}

	data := map[string]string{
		"visit_number": v.VisitNumber,
		"patient_name": "patient " + v.PatientID.String(),
		"stage":        strings.ReplaceAll(string(stage), "_", " "),
	}
	if p, err := s.Patients.GetPatient(ctx, v.PatientID); err == nil {
		data["patient_name"] = p.FullName()
	}
	for k, val := range extra {
		data[k] = val
	}

	recipients := make([]notification.Recipient, len(members))
	for i, m := range members {
		recipients[i] = notification.Recipient{StaffID: m.ID, Email: m.Email}
	}
	report := s.Notifier.Notify(ctx, notification.Alert{
		TemplateID: templateID,
		Data:       data,
		Recipients: recipients,
		VisitID:    &v.ID,
	})
	if err := report.Err(); err != nil {
		log.Warn().Err(err).
			Int("emails_failed", report.EmailsFailed).
			Int("in_app_failed", report.InAppFailed).
			Msg("stage notification partially failed")
		return failed(EffectNotifyStaff, err)
	}
	return SideEffect{Name: EffectNotifyStaff, OK: true}
}

func failed(name string, err error) SideEffect {
	return SideEffect{Name: name, Error: err.Error()}
}

// Message describes a transition for API responses.
func Message(tr visit.Transition) string {
	if tr.Completed {
		return "Visit completed"
	}
	return fmt.Sprintf("Visit handed off from %s to %s", tr.From, tr.To)
}
