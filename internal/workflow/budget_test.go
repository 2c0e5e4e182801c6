package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetChargesDownToZero(t *testing.T) {
	b := NewUsageBudget(3)
	assert.Equal(t, 3, b.Remaining())

	for i := 0; i < 3; i++ {
		assert.True(t, b.Charge())
	}
	assert.True(t, b.Exhausted())
	assert.Equal(t, 0, b.Remaining())

	// Never goes negative.
	assert.False(t, b.Charge())
	assert.Equal(t, 0, b.Remaining())
}

func TestBudgetGraceGrantedExactlyOnce(t *testing.T) {
	b := NewUsageBudget(1)
	assert.True(t, b.Charge())
	assert.True(t, b.Exhausted())

	assert.True(t, b.GrantGrace())
	assert.False(t, b.Exhausted())
	assert.True(t, b.Charge())
	assert.True(t, b.Exhausted())

	assert.False(t, b.GrantGrace())
	assert.False(t, b.Charge())
}

func TestBudgetChargeNCapsAtLimit(t *testing.T) {
	b := NewUsageBudget(5)
	b.ChargeN(3)
	assert.Equal(t, 2, b.Remaining())

	// A sub-task reporting more than the remaining share caps at zero.
	b.ChargeN(10)
	assert.True(t, b.Exhausted())
	assert.Equal(t, 0, b.Remaining())
}
