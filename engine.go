package eventbus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// engine runs the dispatch loop: every matching subscription is invoked in
// turn and a failure in one never stops the others.
type engine struct {
	registry   *Registry
	exceptions ExceptionHandler
	hooks      hooks
	telemetry  *telemetry
	logger     *slog.Logger
}

// dispatch delivers event to a snapshot of the matching subscriptions. The
// result is only built when measure is set.
func (e *engine) dispatch(ctx context.Context, event any, measure bool) *PostResult {
	subs := e.registry.Matching(event)

	ctx, span := e.telemetry.startDispatch(ctx, event, len(subs))

	var res *PostResult
	if measure {
		res = newPostResult(event, len(subs))
	}

	succeeded, failed := 0, 0
	for _, sub := range subs {
		e.hooks.dispatch(ctx, e.logger, sub, event)

		start := time.Now()
		herr := e.invoke(ctx, sub, event)
		d := time.Since(start)

		if herr != nil {
			failed++
			e.telemetry.recordInvocation(ctx, sub, d, herr)
			e.hooks.failure(ctx, e.logger, sub, event, herr, d)
			e.handleException(ctx, herr)
			continue
		}

		succeeded++
		e.telemetry.recordInvocation(ctx, sub, d, nil)
		if res != nil {
			res.Timings[sub] = d
		}
		e.hooks.success(ctx, e.logger, sub, event, d)
	}

	e.telemetry.endDispatch(span, succeeded, failed)

	if res != nil {
		res.Succeeded, res.Failed = succeeded, failed
	}
	return res
}

// invoke calls one subscription, converting a returned error or a panic into
// a *HandlerError.
func (e *engine) invoke(ctx context.Context, sub *Subscription, event any) (herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{
				Subscription: sub,
				Event:        event,
				Panic:        r,
				Stack:        debug.Stack(),
			}
		}
	}()

	if err := sub.invoke(ctx, event); err != nil {
		return &HandlerError{Subscription: sub, Event: event, Err: err}
	}
	return nil
}

func (e *engine) handleException(ctx context.Context, herr *HandlerError) {
	guard(ctx, e.logger, "exception handler", herr.Subscription, func() {
		e.exceptions.HandleException(ctx, herr)
	}, "cause", herr.Error())
}
