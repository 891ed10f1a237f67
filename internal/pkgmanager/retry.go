package pkgmanager

import (
	"context"

	"github.com/cenkalti/backoff/v5"
)

// RetryIdempotent retries fn with exponential backoff, but only ever for
// operations the caller has already classified as idempotent (listing,
// resolve, lock reads). Installs are never retried automatically, so this
// helper must never be reached from InstallPackages/UninstallPackages call
// sites.
func RetryIdempotent[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		pmErr, _ := err.(*Error)
		if pmErr != nil && !pmErr.IsIdempotent() {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(4),
	)
}
