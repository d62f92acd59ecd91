package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/bus-dispatch-api/internal/repository"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

// validationStep is one named pre-commit check. Steps run in declaration
// order and the first failure stops the chain.
type validationStep struct {
	name  string
	check func(ctx context.Context) error
}

func runValidation(ctx context.Context, steps []validationStep) error {
	for _, step := range steps {
		if err := step.check(ctx); err != nil {
			appErr := appErrors.FromError(err)
			return appErr.WithDetails(map[string]interface{}{"check": step.name})
		}
	}
	return nil
}

// invariantError builds a taxonomy error naming the violated invariant and the
// conflicting resource.
func invariantError(base *appErrors.Error, message, invariant, resource, id string) *appErrors.Error {
	details := map[string]interface{}{"invariant": invariant}
	if resource != "" {
		details["resource"] = resource
	}
	if id != "" {
		details["id"] = id
	}
	return appErrors.Clone(base, message).WithDetails(details)
}

func notFound(resource, id string) *appErrors.Error {
	return invariantError(appErrors.ErrNotFound, resource+" not found", "exists", resource, id)
}

func validationFailed(field, message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, message).WithDetails(map[string]interface{}{"field": field})
}

// lookupError maps a collaborator lookup failure onto the taxonomy.
func lookupError(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(resource, id)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return storeError(err, "failed to load "+resource)
}

// storeError wraps a storage failure; transient failures surface as STORE_UNAVAILABLE.
func storeError(err error, message string) *appErrors.Error {
	if repository.IsTransient(err) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
