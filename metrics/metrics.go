// Package metrics defines the instrumentation contract for payment
// processing.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event and operation names recorded by the challenge handler.
const (
	EventPaymentRequired = "payment_required"
	EventPaymentRejected = "payment_rejected"
	EventPaymentSettled  = "payment_settled"
	EventSettleFailed    = "settle_failed"
	EventLedgerFailed    = "ledger_failed"

	OpVerify = "verify"
	OpSettle = "settle"
)
