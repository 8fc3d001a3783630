package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

type Category string

const (
	CategoryConsultation Category = "consultation"
	CategoryPharmacy     Category = "pharmacy"
	CategoryLaboratory   Category = "laboratory"
	CategoryProcedure    Category = "procedure"
	CategoryOther        Category = "other"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryConsultation, CategoryPharmacy, CategoryLaboratory, CategoryProcedure, CategoryOther:
		return true
	}
	return false
}

// LineItem is one billed row. SourceID points at the prescription or lab
// test the row was derived from.
type LineItem struct {
	Description     string          `json:"description"`
	Category        Category        `json:"category"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Total           decimal.Decimal `json:"total"`
	ServiceChargeID *uuid.UUID      `json:"serviceChargeId,omitempty"`
	SourceID        *uuid.UUID      `json:"sourceId,omitempty"`
}

func NewLineItem(description string, category Category, quantity int, unitPrice decimal.Decimal) LineItem {
	return LineItem{
		Description: description,
		Category:    category,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

type InsuranceClaim struct {
	Provider     string          `json:"provider"`
	PolicyNumber string          `json:"policyNumber"`
	ClaimAmount  decimal.Decimal `json:"claimAmount"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Invoice is billed once per visit; EncounterID is the visit id and is
// unique across invoices.
type Invoice struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoiceNumber"`
	EncounterID    uuid.UUID       `db:"encounter_id" json:"encounterId"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patientId"`
	BranchID       uuid.UUID       `db:"branch_id" json:"branchId"`
	Items          []LineItem      `db:"items" json:"items"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax            decimal.Decimal `db:"tax" json:"tax"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grandTotal"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paidAmount"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Status         InvoiceStatus   `db:"status" json:"status"`
	InsuranceClaim *InsuranceClaim `db:"insurance_claim" json:"insuranceClaim,omitempty"`
	GeneratedBy    uuid.UUID       `db:"generated_by" json:"generatedBy"`
	Version        int             `db:"version" json:"version"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

type InvoiceFilter struct {
	PatientID *uuid.UUID
	BranchID  *uuid.UUID
	Status    InvoiceStatus
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodPOS          PaymentMethod = "POS"
	MethodInsurance    PaymentMethod = "INSURANCE"
	MethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
)

func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodPOS, MethodInsurance, MethodMobileMoney:
		return true
	}
	return false
}

const PaymentCompleted = "COMPLETED"

type Payment struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	InvoiceID  uuid.UUID       `db:"invoice_id" json:"invoiceId"`
	VisitID    uuid.UUID       `db:"visit_id" json:"visitId"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Method     PaymentMethod   `db:"method" json:"method"`
	Reference  string          `db:"reference" json:"reference"`
	ReceivedBy uuid.UUID       `db:"received_by" json:"receivedBy"`
	Status     string          `db:"status" json:"status"`
	Notes      *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// ServiceCharge is a branch price list entry and the only source of billed
// amounts for catalog items.
type ServiceCharge struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	BranchID  uuid.UUID       `db:"branch_id" json:"branchId"`
	Name      string          `db:"name" json:"name"`
	Category  Category        `db:"category" json:"category"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

type ChargeFilter struct {
	BranchID   *uuid.UUID
	Category   Category
	ActiveOnly bool
}
