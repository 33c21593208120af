// Package confirm decides when a submitted transaction is safe to build on.
//
// FixedDelay sleeps for a settle period, which is what the ledger's own
// tooling does. Poller asks the node for the transaction status with
// exponential backoff until the outcome is final.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// DefaultSettleDelay is the fixed wait used between dependent transactions.
const DefaultSettleDelay = time.Second

var (
	_ interfaces.Confirmer = FixedDelay{}
	_ interfaces.Confirmer = (*Poller)(nil)
)

// FixedDelay waits Delay regardless of the transaction.
type FixedDelay struct {
	Delay time.Duration
}

// AwaitConfirmation sleeps for the delay or until ctx is done.
func (d FixedDelay) AwaitConfirmation(ctx context.Context, _ string, _ interfaces.AccountID) error {
	if d.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusSource looks up transaction outcomes. Implemented by *nearrpc.Client.
type StatusSource interface {
	TxStatus(ctx context.Context, txHash string, senderID interfaces.AccountID) (*interfaces.TransactionOutcome, error)
}

// Poller confirms transactions by polling their status.
type Poller struct {
	source StatusSource
	log    *slog.Logger

	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime bounds the whole wait. Zero means wait until ctx is done.
	MaxElapsedTime time.Duration
}

// NewPoller returns a poller with intervals suited to ~1s block times.
func NewPoller(source StatusSource, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		source:          source,
		log:             log,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

var errPending = errors.New("transaction pending")

// AwaitConfirmation polls until the node reports a final outcome for txHash.
// Both Success and Failure outcomes count as final. An empty hash has nothing
// to confirm and returns immediately.
func (p *Poller) AwaitConfirmation(ctx context.Context, txHash string, signerID interfaces.AccountID) error {
	if txHash == "" {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()

	attempts := 0
	op := func() error {
		attempts++
		outcome, err := p.source.TxStatus(ctx, txHash, signerID)
		if err != nil {
			return err
		}
		if outcome.Status == interfaces.OutcomePending {
			return errPending
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		p.log.Debug("Transaction not final yet", "txHash", txHash, "err", err, "retryIn", next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s after %d attempts: %v", interfaces.ErrNotConfirmed, txHash, attempts, err)
	}

	p.log.Debug("Transaction confirmed", "txHash", txHash, "attempts", attempts)
	return nil
}
