package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// Pricing holds the defaults the invoice generator bills with.
type Pricing struct {
	TaxRate             decimal.Decimal
	ConsultationFee     decimal.Decimal
	PharmacyMarkup      decimal.Decimal
	DefaultDrugPrice    decimal.Decimal
	DefaultLabPrice     decimal.Decimal
	InsuranceClaimRatio decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:             decimal.RequireFromString("0.075"),
		ConsultationFee:     decimal.NewFromInt(5000),
		PharmacyMarkup:      decimal.RequireFromString("1.2"),
		DefaultDrugPrice:    decimal.NewFromInt(500),
		DefaultLabPrice:     decimal.NewFromInt(3000),
		InsuranceClaimRatio: decimal.RequireFromString("0.30"),
	}
}

func PricingFromConfig(c config.BillingConfig) (Pricing, error) {
	var p Pricing
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"TAX_RATE", c.TaxRate, &p.TaxRate},
		{"CONSULTATION_FEE", c.ConsultationFee, &p.ConsultationFee},
		{"PHARMACY_MARKUP", c.PharmacyMarkup, &p.PharmacyMarkup},
		{"DEFAULT_DRUG_PRICE", c.DefaultDrugPrice, &p.DefaultDrugPrice},
		{"DEFAULT_LAB_PRICE", c.DefaultLabPrice, &p.DefaultLabPrice},
		{"INSURANCE_CLAIM_RATIO", c.InsuranceClaimRatio, &p.InsuranceClaimRatio},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Pricing{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = d
	}
	return p, nil
}

// PricingOverrides lets a caller replace individual defaults for one
// generation. Nil fields keep the configured value.
type PricingOverrides struct {
	ConsultationFee  *decimal.Decimal `json:"consultationFee,omitempty"`
	PharmacyMarkup   *decimal.Decimal `json:"pharmacyMarkup,omitempty"`
	DefaultDrugPrice *decimal.Decimal `json:"defaultDrugPrice,omitempty"`
	DefaultLabPrice  *decimal.Decimal `json:"defaultLabPrice,omitempty"`
}

func (p Pricing) With(o *PricingOverrides) (Pricing, error) {
	if o == nil {
		return p, nil
	}
	set := func(name string, v *decimal.Decimal, dst *decimal.Decimal) error {
		if v == nil {
			return nil
		}
		if v.IsNegative() {
			return apperr.Validation("pricing.%s must not be negative", name)
		}
		*dst = *v
		return nil
	}
	for _, err := range []error{
		set("consultationFee", o.ConsultationFee, &p.ConsultationFee),
		set("pharmacyMarkup", o.PharmacyMarkup, &p.PharmacyMarkup),
		set("defaultDrugPrice", o.DefaultDrugPrice, &p.DefaultDrugPrice),
		set("defaultLabPrice", o.DefaultLabPrice, &p.DefaultLabPrice),
	} {
		if err != nil {
			return Pricing{}, err
		}
	}
	return p, nil
}

// Recalculate derives every total from the item list: tax is taxRate of the
// subtotal rounded to whole units, the grand total is subtotal + tax -
// discount and the balance is what remains after payments.
func (inv *Invoice) Recalculate(taxRate decimal.Decimal) {
	sub := decimal.Zero
	for _, it := range inv.Items {
		sub = sub.Add(it.Total)
	}
	inv.Subtotal = sub
	inv.Tax = sub.Mul(taxRate).Round(0)
	inv.GrandTotal = sub.Add(inv.Tax).Sub(inv.Discount)
	inv.Balance = inv.GrandTotal.Sub(inv.PaidAmount)
}

// ApplyPayment books amount against the balance. Status becomes PAID when the
// balance reaches zero and PARTIALLY_PAID while some but not all is paid.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if inv.Status == InvoiceCancelled {
		return apperr.Conflict("invoice %s is cancelled", inv.InvoiceNumber)
	}
	if amount.IsNegative() {
		return apperr.Validation("paymentAmount must not be negative")
	}
	if amount.GreaterThan(inv.Balance) {
		return apperr.Conflict("payment amount %s exceeds invoice balance %s", amount.StringFixed(2), inv.Balance.StringFixed(2))
	}
	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.Balance = inv.GrandTotal.Sub(inv.PaidAmount)
	switch {
	case inv.Balance.IsZero():
		inv.Status = InvoicePaid
	case inv.PaidAmount.IsPositive():
		inv.Status = InvoicePartiallyPaid
	}
	return nil
}

// CheckTotals reports an invoice whose stored totals disagree with each other.
func (inv *Invoice) CheckTotals() error {
	if !inv.GrandTotal.Equal(inv.Subtotal.Add(inv.Tax).Sub(inv.Discount)) {
		return fmt.Errorf("invoice %s: grand total %s != subtotal %s + tax %s - discount %s",
			inv.InvoiceNumber, inv.GrandTotal, inv.Subtotal, inv.Tax, inv.Discount)
	}
	if !inv.Balance.Equal(inv.GrandTotal.Sub(inv.PaidAmount)) {
		return fmt.Errorf("invoice %s: balance %s != grand total %s - paid %s",
			inv.InvoiceNumber, inv.Balance, inv.GrandTotal, inv.PaidAmount)
	}
	return nil
}
