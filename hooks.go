package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExceptionHandler receives every handler failure. It runs on the
// dispatching goroutine; dispatch continues with the next subscription once
// it returns. A panicking ExceptionHandler is recovered and logged.
type ExceptionHandler interface {
	HandleException(ctx context.Context, err *HandlerError)
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(ctx context.Context, err *HandlerError)

// HandleException implements ExceptionHandler.
func (f ExceptionHandlerFunc) HandleException(ctx context.Context, err *HandlerError) { f(ctx, err) }

// LogExceptions returns the default ExceptionHandler: it logs each failure
// at Error level and continues.
func LogExceptions(logger *slog.Logger) ExceptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return ExceptionHandlerFunc(func(ctx context.Context, err *HandlerError) {
		attrs := []any{
			"subscription", err.Subscription.Name(),
			"subscription_id", err.Subscription.ID(),
			"event_type", fmt.Sprintf("%T", err.Event),
		}
		if err.Panic != nil {
			attrs = append(attrs, "panic", fmt.Sprint(err.Panic), "stack", string(err.Stack))
		} else {
			attrs = append(attrs, "error", err.Err)
		}
		logger.ErrorContext(ctx, "event handler failed", attrs...)
	})
}

// OnDispatchFunc is called just before a subscription is invoked.
type OnDispatchFunc func(ctx context.Context, sub *Subscription, event any)

// OnSuccessFunc is called after a subscription completes successfully.
type OnSuccessFunc func(ctx context.Context, sub *Subscription, event any, duration time.Duration)

// OnFailureFunc is called after a subscription fails, before the
// ExceptionHandler.
type OnFailureFunc func(ctx context.Context, sub *Subscription, event any, err error, duration time.Duration)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
}

// WithOnDispatch adds a hook called just before each subscription runs.
// Multiple hooks are called in order.
//
// Example:
//
//	eventbus.WithOnDispatch(func(ctx context.Context, sub *eventbus.Subscription, event any) {
//	    logger.DebugContext(ctx, "dispatching", "subscription", sub.Name())
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(o *options) {
		o.hooks.onDispatch = append(o.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a subscription completes
// successfully. Multiple hooks are called in order.
//
// Example:
//
//	eventbus.WithOnSuccess(func(ctx context.Context, sub *eventbus.Subscription, event any, d time.Duration) {
//	    metrics.Timing("eventbus.success", d, "subscription:"+sub.Name())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(o *options) {
		o.hooks.onSuccess = append(o.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after a subscription fails. The error is
// a *HandlerError. Multiple hooks are called in order.
//
// Example:
//
//	eventbus.WithOnFailure(func(ctx context.Context, sub *eventbus.Subscription, event any, err error, d time.Duration) {
//	    metrics.Incr("eventbus.failure", "subscription:"+sub.Name())
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(o *options) {
		o.hooks.onFailure = append(o.hooks.onFailure, fn)
	}
}

// The hook runners recover a panicking hook, log it and carry on with the
// remaining hooks and subscriptions.

func (h *hooks) dispatch(ctx context.Context, logger *slog.Logger, sub *Subscription, event any) {
	for _, fn := range h.onDispatch {
		guard(ctx, logger, "dispatch hook", sub, func() { fn(ctx, sub, event) })
	}
}

func (h *hooks) success(ctx context.Context, logger *slog.Logger, sub *Subscription, event any, d time.Duration) {
	for _, fn := range h.onSuccess {
		guard(ctx, logger, "success hook", sub, func() { fn(ctx, sub, event, d) })
	}
}

func (h *hooks) failure(ctx context.Context, logger *slog.Logger, sub *Subscription, event any, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		guard(ctx, logger, "failure hook", sub, func() { fn(ctx, sub, event, err, d) })
	}
}

func guard(ctx context.Context, logger *slog.Logger, what string, sub *Subscription, fn func(), attrs ...any) {
	defer func() {
		if r := recover(); r != nil {
			attrs = append([]any{
				"subscription", sub.Name(),
				"subscription_id", sub.ID(),
				"panic", fmt.Sprint(r),
			}, attrs...)
			logger.ErrorContext(ctx, what+" panicked", attrs...)
		}
	}()
	fn()
}
