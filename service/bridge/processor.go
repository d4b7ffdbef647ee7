package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/metrics"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/nats"
)

// Outcome is the result of processing one resolved (tag, amount) request.
type Outcome int

const (
	// OutcomeDebitApplied means the balance was decremented and a
	// debit_success movement was recorded.
	OutcomeDebitApplied Outcome = iota
	// OutcomeInsufficientFunds means the balance was left unchanged and an
	// insufficient_funds movement was recorded.
	OutcomeInsufficientFunds
	// OutcomeUnknownTag means no account holds the tag and an unknown_tag
	// movement was recorded.
	OutcomeUnknownTag
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDebitApplied:
		return "debit_applied"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	case OutcomeUnknownTag:
		return "unknown_tag"
	default:
		return "unknown"
	}
}

// Store is the subset of persistence operations the processor needs.
// *db.Store satisfies it; tests use an in-memory fake.
type Store interface {
	GetAccountByTag(ctx context.Context, tagID string) (*db.Account, error)
	DebitAccount(ctx context.Context, tagID string, amount int64) (int64, error)
	AppendMovement(ctx context.Context, params db.AppendMovementParams) (*db.Movement, error)
}

// Processor turns a resolved (tag, amount) request into a balance check, a
// conditional debit, an audit movement and a movement event. Exactly one
// movement is written per resolved request unless the store fails, in which
// case the attempt is abandoned with no movement at all.
type Processor struct {
	store     Store
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewProcessor creates a transaction processor.
// The publisher and metrics may be nil; events and metrics are then skipped.
func NewProcessor(store Store, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Process handles one transaction request. Business rejections (unknown tag,
// insufficient funds) are outcomes, not errors; a non-nil error means the
// store was unreachable and no movement was recorded.
func (p *Processor) Process(ctx context.Context, tagID string, amount int64) (Outcome, error) {
	start := time.Now()

	outcome, err := p.process(ctx, tagID, amount)
	if err != nil {
		return outcome, err
	}

	if p.metrics != nil {
		p.metrics.RecordTransaction(outcome.String(), time.Since(start).Seconds())
	}
	return outcome, nil
}

func (p *Processor) process(ctx context.Context, tagID string, amount int64) (Outcome, error) {
	account, err := p.store.GetAccountByTag(ctx, tagID)
	if errors.Is(err, db.ErrAccountNotFound) {
		return p.reject(ctx, db.HolderUnknown, tagID, amount, db.MovementUnknownTag, OutcomeUnknownTag)
	}
	if err != nil {
		p.recordStoreFailure("get_account")
		return 0, fmt.Errorf("account lookup failed: %w", err)
	}

	holder := account.HolderName()

	newBalance, err := p.store.DebitAccount(ctx, tagID, amount)
	switch {
	case errors.Is(err, db.ErrInsufficientFunds):
		return p.reject(ctx, holder, tagID, amount, db.MovementInsufficientFunds, OutcomeInsufficientFunds)
	case errors.Is(err, db.ErrAccountNotFound):
		// The account was deleted between lookup and debit.
		return p.reject(ctx, db.HolderUnknown, tagID, amount, db.MovementUnknownTag, OutcomeUnknownTag)
	case err != nil:
		p.recordStoreFailure("debit_account")
		return 0, fmt.Errorf("debit failed: %w", err)
	}

	// The debit is already applied; a failed audit write must not undo it.
	movement, err := p.store.AppendMovement(ctx, db.AppendMovementParams{
		HolderName: holder,
		TagID:      tagID,
		Amount:     amount,
		Kind:       db.MovementDebitSuccess,
	})
	if err != nil {
		p.recordStoreFailure("append_movement")
		p.logger.Error("debit applied but movement write failed",
			"tag", tagID,
			"amount", amount,
			"error", err,
		)
		return OutcomeDebitApplied, nil
	}

	p.logger.Info("debit applied",
		"tag", tagID,
		"holder", holder,
		"amount", amount,
		"balance", newBalance,
	)
	p.publish(ctx, movement)

	return OutcomeDebitApplied, nil
}

// reject records the movement for a business rejection and returns the outcome.
func (p *Processor) reject(ctx context.Context, holder, tagID string, amount int64, kind db.MovementKind, outcome Outcome) (Outcome, error) {
	movement, err := p.store.AppendMovement(ctx, db.AppendMovementParams{
		HolderName: holder,
		TagID:      tagID,
		Amount:     amount,
		Kind:       kind,
	})
	if err != nil {
		p.recordStoreFailure("append_movement")
		return outcome, fmt.Errorf("movement write failed: %w", err)
	}

	p.logger.Info("transaction rejected",
		"tag", tagID,
		"holder", holder,
		"amount", amount,
		"kind", string(kind),
	)
	p.publish(ctx, movement)

	return outcome, nil
}

// publish emits a movement event; failures are logged and otherwise ignored.
func (p *Processor) publish(ctx context.Context, movement *db.Movement) {
	if p.publisher == nil {
		return
	}

	event := nats.FromDBMovement(movement)

	start := time.Now()
	err := p.publisher.PublishMovement(ctx, event)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(event.Subject(), status, time.Since(start).Seconds())
	}
	if err != nil {
		p.logger.Error("failed to publish movement event",
			"movement_id", movement.ID,
			"error", err,
		)
	}
}

func (p *Processor) recordStoreFailure(operation string) {
	if p.metrics != nil {
		p.metrics.RecordStoreFailure(operation)
	}
}
