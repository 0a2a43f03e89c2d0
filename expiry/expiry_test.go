package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAt(t *testing.T) {
	now := time.Date(2021, 6, 9, 0, 0, 0, 0, time.UTC)
	d := At(now)
	assert.Equal(t, Dates{ThisWeek: "210611", NextWeek: "210618", Quarter: "210625", NextQuarter: "210924"}, d)
	assert.Equal(t, []string{"210611", "210618", "210625", "210924"}, d.List())
}

func TestAtQuarterRoll(t *testing.T) {
	now := time.Date(2021, 6, 17, 12, 0, 0, 0, time.UTC)
	d := At(now)
	assert.Equal(t, "210618", d.ThisWeek)
	assert.Equal(t, "210625", d.NextWeek)
	assert.Equal(t, "210924", d.Quarter)
	assert.Equal(t, "211231", d.NextQuarter)
}

func TestSettlementBoundary(t *testing.T) {
	before := time.Date(2021, 6, 11, 7, 59, 59, 0, time.UTC)
	at := time.Date(2021, 6, 11, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "210611", At(before).ThisWeek)
	assert.Equal(t, "210618", At(at).ThisWeek)

	// 非 UTC 时区按 UTC 计算
	shanghai := time.FixedZone("CST", 8*3600)
	assert.Equal(t, "210618", At(time.Date(2021, 6, 11, 16, 30, 0, 0, shanghai)).ThisWeek)
}

func TestContractDate(t *testing.T) {
	d := At(time.Date(2021, 6, 9, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "210611", d.ContractDate(ThisWeek))
	assert.Equal(t, "210618", d.ContractDate(NextWeek))
	assert.Equal(t, "210625", d.ContractDate(Quarter))
	assert.Equal(t, "210924", d.ContractDate(NextQuarter))
	assert.Equal(t, "", d.ContractDate("swap"))
}
