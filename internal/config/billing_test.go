package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/tuitionledger/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultBillingConfigExemptsTuitionInBreakMonths(t *testing.T) {
	holder, err := NewStaticBillingConfigHolder(DefaultBillingConfig())
	require.NoError(t, err)

	assert.Contains(t, holder.ExemptItemCodes(period.MustParse("2024-03")), "tuition")
	assert.Contains(t, holder.ExemptItemCodes(period.MustParse("2024-08")), "tuition")
	assert.Empty(t, holder.ExemptItemCodes(period.MustParse("2024-04")))
}

func TestValidateBillingConfig(t *testing.T) {
	_, err := NewStaticBillingConfigHolder(BillingConfig{})
	assert.Error(t, err)

	_, err = NewStaticBillingConfigHolder(BillingConfig{
		TuitionItemCode: "tuition",
		Exemptions:      []Exemption{{Month: 13, Items: []string{"tuition"}}},
	})
	assert.Error(t, err)

}

func TestExemptionWithoutItemsMeansTuition(t *testing.T) {
	holder, err := NewStaticBillingConfigHolder(BillingConfig{
		TuitionItemCode: " Lessons ",
		Exemptions:      []Exemption{{Month: 7}, {Month: 12, Items: []string{" "}}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{"lessons": {}}, holder.ExemptItemCodes(period.MustParse("2024-07")))
	assert.Equal(t, map[string]struct{}{"lessons": {}}, holder.ExemptItemCodes(period.MustParse("2024-12")))
	assert.Empty(t, holder.ExemptItemCodes(period.MustParse("2024-06")))
}

func TestBillingConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`billing:
  tuition_item_code: Tuition
  exemptions:
    - month: 12
      items: [Tuition, bus]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))
	t.Setenv("BILLING_CONFIG_DIR", dir)

	holder, err := NewBillingConfigHolder(zaptest.NewLogger(t))
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "tuition", cfg.TuitionItemCode)

	exempt := holder.ExemptItemCodes(period.MustParse("2024-12"))
	assert.Contains(t, exempt, "tuition")
	assert.Contains(t, exempt, "bus")
	assert.Empty(t, holder.ExemptItemCodes(period.MustParse("2024-03")))
}
