package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/apperr"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecalculate_TaxRoundedToWholeUnits(t *testing.T) {
	inv := &Invoice{Items: []LineItem{
		NewLineItem("Consultation fee", CategoryConsultation, 1, dec("5000")),
		NewLineItem("X-ray", CategoryProcedure, 1, dec("2000")),
	}}
	inv.Recalculate(dec("0.075"))

	assert.True(t, inv.Subtotal.Equal(dec("7000")), "subtotal %s", inv.Subtotal)
	assert.True(t, inv.Tax.Equal(dec("525")), "tax %s", inv.Tax)
	assert.True(t, inv.GrandTotal.Equal(dec("7525")), "grand total %s", inv.GrandTotal)
	assert.True(t, inv.Balance.Equal(dec("7525")), "balance %s", inv.Balance)
	require.NoError(t, inv.CheckTotals())
}

func TestRecalculate_KeepsDiscountAndPayments(t *testing.T) {
	inv := &Invoice{
		Items:      []LineItem{NewLineItem("Malaria test", CategoryLaboratory, 2, dec("1500"))},
		Discount:   dec("100"),
		PaidAmount: dec("1000"),
	}
	inv.Recalculate(dec("0.075"))

	assert.True(t, inv.Tax.Equal(dec("225")))
	assert.True(t, inv.GrandTotal.Equal(dec("3125")))
	assert.True(t, inv.Balance.Equal(dec("2125")))
	require.NoError(t, inv.CheckTotals())
}

func TestApplyPayment_Statuses(t *testing.T) {
	inv := &Invoice{Items: []LineItem{NewLineItem("Consultation fee", CategoryConsultation, 1, dec("10000"))}, Status: InvoicePending}
	inv.Recalculate(decimal.Zero)

	require.NoError(t, inv.ApplyPayment(decimal.Zero))
	assert.Equal(t, InvoicePending, inv.Status)

	require.NoError(t, inv.ApplyPayment(dec("4000")))
	assert.Equal(t, InvoicePartiallyPaid, inv.Status)
	assert.True(t, inv.Balance.Equal(dec("6000")))

	require.NoError(t, inv.ApplyPayment(dec("6000")))
	assert.Equal(t, InvoicePaid, inv.Status)
	assert.True(t, inv.Balance.IsZero())
	require.NoError(t, inv.CheckTotals())
}

func TestApplyPayment_RejectsOverpayment(t *testing.T) {
	inv := &Invoice{Items: []LineItem{NewLineItem("Surgery", CategoryProcedure, 1, dec("10000"))}, Status: InvoicePending}
	inv.Recalculate(decimal.Zero)

	err := inv.ApplyPayment(dec("12000"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "exceeds invoice balance 10000.00")
	assert.True(t, inv.Balance.Equal(dec("10000")))
	assert.True(t, inv.PaidAmount.IsZero())
	assert.Equal(t, InvoicePending, inv.Status)
}

func TestApplyPayment_CancelledAndNegative(t *testing.T) {
	inv := &Invoice{Status: InvoiceCancelled}
	assert.Error(t, inv.ApplyPayment(dec("1")))

	inv.Status = InvoicePending
	err := inv.ApplyPayment(dec("-1"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestInvariantsHoldAcrossMutations(t *testing.T) {
	inv := &Invoice{Status: InvoicePending}
	rate := dec("0.075")
	steps := []struct {
		add LineItem
		pay string
	}{
		{NewLineItem("Consultation fee", CategoryConsultation, 1, dec("5000")), "0"},
		{NewLineItem("Amoxicillin", CategoryPharmacy, 3, dec("600.50")), "2000"},
		{NewLineItem("FBC", CategoryLaboratory, 1, dec("3000")), "1500"},
		{NewLineItem("Dressing", CategoryProcedure, 2, dec("750")), "0"},
	}
	for _, s := range steps {
		inv.Items = append(inv.Items, s.add)
		inv.Recalculate(rate)
		require.NoError(t, inv.CheckTotals())
		require.NoError(t, inv.ApplyPayment(dec(s.pay)))
		require.NoError(t, inv.CheckTotals())
	}
	require.NoError(t, inv.ApplyPayment(inv.Balance))
	assert.Equal(t, InvoicePaid, inv.Status)
}

func TestPricingWithOverrides(t *testing.T) {
	fee := dec("7500")
	p, err := DefaultPricing().With(&PricingOverrides{ConsultationFee: &fee})
	require.NoError(t, err)
	assert.True(t, p.ConsultationFee.Equal(fee))
	assert.True(t, p.PharmacyMarkup.Equal(dec("1.2")))

	neg := dec("-1")
	_, err = DefaultPricing().With(&PricingOverrides{DefaultLabPrice: &neg})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPricingFromConfig(t *testing.T) {
	p, err := PricingFromConfig(config.BillingConfig{
		TaxRate: "0.075", ConsultationFee: "5000", PharmacyMarkup: "1.2",
		DefaultDrugPrice: "500", DefaultLabPrice: "3000", InsuranceClaimRatio: "0.30",
	})
	require.NoError(t, err)
	want := DefaultPricing()
	assert.True(t, p.TaxRate.Equal(want.TaxRate))
	assert.True(t, p.ConsultationFee.Equal(want.ConsultationFee))
	assert.True(t, p.InsuranceClaimRatio.Equal(want.InsuranceClaimRatio))

	_, err = PricingFromConfig(config.BillingConfig{TaxRate: "abc"})
	assert.ErrorContains(t, err, "TAX_RATE")
}
