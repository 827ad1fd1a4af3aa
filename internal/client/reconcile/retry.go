package reconcile

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/nova-sdk/novakeeper/internal/common"
)

// retryPolicy is how many times each error class is retried without user
// input. Classes not listed are surfaced immediately.
var retryPolicy = map[common.Class]uint64{
	common.ClassUnavailable: 1,
}

// withRetry runs fn under retryPolicy. A run whose episode has ended stops
// retrying and returns ErrSuperseded.
func (o *Orchestrator) withRetry(ctx context.Context, r *run, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, o.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !o.current(r) {
			return ErrSuperseded
		}
		class := common.Classify(err)
		if uint64(attempt) > retryPolicy[class] {
			return err
		}
		o.log.Warn(ctx, "retrying", "op", op, "attempt", attempt, "class", class, "run_id", r.id)
		return retry.RetryableError(err)
	})
}

func (o *Orchestrator) backoff() retry.Backoff {
	var most uint64
	for _, n := range retryPolicy {
		most = max(most, n)
	}
	return retry.WithMaxRetries(most, retry.NewConstant(o.cfg.RetryBackoff))
}
