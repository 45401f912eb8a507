package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
min_duration_months: 3
max_duration_months: 24
min_amount: "500"
allow_partial_supplier: false
cascade_on_primary_offer_reject: close
cascade_on_supplier_offer_reject: close
default_frequency: weekly
notifications:
  installment_paid: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, p.MinDurationMonths)
	assert.Equal(t, 24, p.MaxDurationMonths)
	assert.True(t, p.MinAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, p.MaxAmount.Equal(decimal.NewFromInt(100000)), "unset keys keep defaults")
	assert.False(t, p.AllowPartialSupplier)
	assert.True(t, p.AllowPartialPrimarySeller)
	assert.Equal(t, models.FrequencyWeekly, p.DefaultFrequency)

	s := NewStore(p)
	assert.Equal(t, Close, s.CascadeOnPrimaryOfferReject())
	assert.Equal(t, Close, s.CascadeOnSupplierOfferReject())
	assert.False(t, s.NotificationEnabled(models.EventInstallmentPaid))
	assert.True(t, s.NotificationEnabled(models.EventOfferSubmitted))
}

func TestLoad_RejectsBadCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cascade_on_primary_offer_reject: maybe\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStore_PartialApproval(t *testing.T) {
	p := Default()
	p.AllowPartialPrimarySeller = false
	s := NewStore(p)

	assert.False(t, s.IsPartialApprovalAllowed(ActorPrimarySeller))
	assert.True(t, s.IsPartialApprovalAllowed(ActorSupplier))
	assert.False(t, s.IsPartialApprovalAllowed(Actor("stranger")))
}

func TestStore_Clamping(t *testing.T) {
	p := Default()
	p.MinDurationMonths = 2
	p.MaxDurationMonths = 6
	s := NewStore(p)

	assert.Equal(t, 2, s.ClampDuration(1))
	assert.Equal(t, 4, s.ClampDuration(4))
	assert.Equal(t, 6, s.ClampDuration(10))

	assert.Equal(t, 2, s.ClampInstallmentCount(models.FrequencyMonthly, 1))
	assert.Equal(t, 8, s.ClampInstallmentCount(models.FrequencyWeekly, 3))
	assert.Equal(t, 24, s.ClampInstallmentCount(models.FrequencyWeekly, 30))
	assert.True(t, s.DurationInBounds(6))
	assert.False(t, s.DurationInBounds(7))
}

func TestStore_DefaultCascades(t *testing.T) {
	s := NewStore(Default())
	assert.Equal(t, ForwardToSuppliers, s.CascadeOnPrimaryOfferReject())
	assert.Equal(t, KeepWaiting, s.CascadeOnSupplierOfferReject())
	assert.Equal(t, "keep_waiting", KeepWaiting.String())
}

func TestStatic_Replace(t *testing.T) {
	prov := NewStatic(Default())
	assert.True(t, prov.Current().Enabled())

	p := Default()
	p.Enabled = false
	prov.Replace(p)
	assert.False(t, prov.Current().Enabled())
}
