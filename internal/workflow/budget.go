// Package workflow contains the Temporal workflow definitions that make up
// the orchestration core: the session loop, the per-turn model/tool cycle,
// the approval gate, the safety guard, and the history governor.
package workflow

// UsageBudget is the per-turn ceiling on model requests. It is shared
// across approval-resumption cycles and delegated sub-tasks within the
// turn: delegation never bypasses the budget. Exclusively owned by one
// turn; constructed fresh at turn start.
type UsageBudget struct {
	max          int
	used         int
	graceGranted bool
}

// NewUsageBudget creates a budget allowing max model requests.
func NewUsageBudget(max int) *UsageBudget {
	return &UsageBudget{max: max}
}

// Charge consumes one request. Returns false when the budget is already
// exhausted and no grace remains; the count never goes negative.
func (b *UsageBudget) Charge() bool {
	if b.used >= b.limit() {
		return false
	}
	b.used++
	return true
}

// ChargeN consumes n requests at once, as reported by a delegated
// sub-task. Consumption is capped at the remaining allowance.
func (b *UsageBudget) ChargeN(n int) {
	b.used += n
	if b.used > b.limit() {
		b.used = b.limit()
	}
}

// Exhausted reports whether no further requests are allowed.
func (b *UsageBudget) Exhausted() bool {
	return b.used >= b.limit()
}

// Remaining returns the number of requests still allowed.
func (b *UsageBudget) Remaining() int {
	return b.limit() - b.used
}

// GrantGrace extends the budget by exactly one request, exactly once.
// Returns false if grace was already granted.
func (b *UsageBudget) GrantGrace() bool {
	if b.graceGranted {
		return false
	}
	b.graceGranted = true
	return true
}

func (b *UsageBudget) limit() int {
	if b.graceGranted {
		return b.max + 1
	}
	return b.max
}
