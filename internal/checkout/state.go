package checkout

// State tracks the lifecycle of a single checkout attempt.
type State string

const (
	StateIdle            State = "IDLE"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateCommitting      State = "COMMITTING"
	StateCompleted       State = "COMPLETED"
	StateFailed          State = "FAILED"
)

// IsTerminal reports whether the attempt has finished; a new attempt must be
// started to check out again.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// String representation (for logging).
func (s State) String() string {
	return string(s)
}
