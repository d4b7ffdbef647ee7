package bridge

import (
	"io"
	"log/slog"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/metrics"
)

// Status lines written back to the device, one per completed transaction.
// The terminal firmware matches on these exact strings.
const (
	ReplyApproved          = "APPROVED"
	ReplyInsufficientFunds = "INSUFFICIENT FUNDS"
	ReplyUnknownCard       = "UNKNOWN CARD"
)

// Responder writes one status line to the device per completed transaction.
// Write failures are logged and otherwise ignored: the debit and the
// movement already stand, and a disconnected device must not roll them back.
type Responder struct {
	device  io.Writer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewResponder creates a responder writing to the device stream.
func NewResponder(device io.Writer, m *metrics.Metrics, logger *slog.Logger) *Responder {
	return &Responder{
		device:  device,
		metrics: m,
		logger:  logger,
	}
}

// Respond writes the status line for the outcome, newline-terminated.
func (r *Responder) Respond(outcome Outcome) {
	line := replyLine(outcome)

	if _, err := io.WriteString(r.device, line+"\n"); err != nil {
		if r.metrics != nil {
			r.metrics.RecordDeviceWriteFailure()
		}
		r.logger.Warn("failed to write reply to device",
			"reply", line,
			"error", err,
		)
	}
}

func replyLine(outcome Outcome) string {
	switch outcome {
	case OutcomeInsufficientFunds:
		return ReplyInsufficientFunds
	case OutcomeUnknownTag:
		return ReplyUnknownCard
	default:
		return ReplyApproved
	}
}
