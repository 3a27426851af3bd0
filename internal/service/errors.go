package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/repository"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

var tracer = otel.Tracer("scrimmage/service")

// startSpan opens a span for a registry operation. The returned func ends it
// and records err when non-nil.
func startSpan(ctx context.Context, name string) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, func(errp *error) {
		endSpan(span, errp)
	}
}

func endSpan(span trace.Span, errp *error) {
	if errp != nil && *errp != nil {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
}

// storageError passes AppErrors through and wraps anything else as internal
func storageError(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.NewInternalError(message, err)
}

// conflictOr maps a constraint violation to a ConflictError with msg and
// anything else through storageError.
func conflictOr(msg string, err error) error {
	if ce, ok := repository.AsConstraintError(err); ok {
		return errors.NewConflictError(msg, ce)
	}
	return storageError("storage failure", err)
}
