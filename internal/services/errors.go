// internal/services/errors.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/javajoker/nearby-market/internal/apperror"
	"github.com/javajoker/nearby-market/internal/keylock"
	"github.com/javajoker/nearby-market/internal/repository"
)

// storeError translates a repository failure into the service taxonomy.
// notFound is returned for repository.ErrNotFound; anything unrecognised is
// surfaced as a retryable infrastructure error.
func storeError(err error, notFound *apperror.Error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperror.ErrInsufficientStock
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Unavailable(err, "failed to %s", action)
}

// admit takes the aggregate lock for id. Once it returns, the operation is
// admitted: the returned context ignores caller cancellation so store
// writes always run to completion.
func admit(ctx context.Context, locks *keylock.Registry, id uuid.UUID) (context.Context, func(), error) {
	unlock, err := locks.Lock(ctx, id)
	if err != nil {
		if errors.Is(err, keylock.ErrTimeout) {
			return nil, nil, apperror.ErrLockTimeout
		}
		return nil, nil, &apperror.Error{
			Kind:    apperror.KindInfrastructure,
			Code:    apperror.CodeLockTimeout,
			Message: "request cancelled while waiting for aggregate lock",
			Err:     err,
		}
	}
	return context.WithoutCancel(ctx), unlock, nil
}
