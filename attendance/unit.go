package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/payroll-engine/ledger"
)

// =============================================================================
// UNIT OF WORK - one record write and its ledger side effects
// =============================================================================

// unit collects compensating actions for stores without transactions.
type unit struct {
	undos []func(context.Context) error
}

func (u *unit) undo(fn func(context.Context) error) {
	u.undos = append(u.undos, fn)
}

// compensate runs the registered undos newest first and joins their errors.
func (u *unit) compensate(ctx context.Context) error {
	var errs []error
	for i := len(u.undos) - 1; i >= 0; i-- {
		if err := u.undos[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// run executes fn as one unit of work, retrying retryable failures.
//
// With a TxRunner, fn runs inside a transaction and a failure rolls the
// whole unit back. Without one, the undos fn registered are replayed. In
// both cases the employee's cached ledger history is dropped on failure so
// the next read reflects what was actually persisted.
func (s *Service) run(ctx context.Context, op, employeeID string, fn func(context.Context, *unit) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.attempt(ctx, employeeID, fn)
		if err == nil {
			return nil
		}
		if !ledger.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		s.log.Warn("attendance unit retrying", "op", op, "employee_id", employeeID, "attempt", attempt, "err", err)
	}
	s.log.Error("attendance unit failed", "op", op, "employee_id", employeeID, "err", err)
	return err
}

func (s *Service) attempt(ctx context.Context, employeeID string, fn func(context.Context, *unit) error) error {
	u := &unit{}
	var err error
	if s.tx != nil {
		err = s.tx.WithTx(ctx, func(ctx context.Context) error { return fn(ctx, u) })
	} else {
		err = fn(ctx, u)
		if err != nil {
			if cerr := u.compensate(ctx); cerr != nil {
				err = fmt.Errorf("%w (compensation failed: %v)", err, cerr)
			}
		}
	}
	if err != nil {
		s.ledger.Forget(employeeID)
	}
	return err
}
