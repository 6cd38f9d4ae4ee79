package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/bjaus/eventbus/codegen"
)

// Strategy turns a handler method on a receiver into an InvokeFunc. A bus
// uses one strategy for every method subscription. Errors returned and
// panics raised by the handler reach the caller of the InvokeFunc unchanged.
type Strategy interface {
	Name() string
	Bind(recv reflect.Value, m Method) (InvokeFunc, error)
}

// Strategy names accepted by StrategyByName and configuration files.
const (
	StrategyIntrospective = "introspective"
	StrategyHandle        = "handle"
	StrategyGenerated     = "generated"
)

// Introspective resolves the method by name on every call. It is the
// slowest strategy and needs no setup.
func Introspective() Strategy { return introspective{} }

type introspective struct{}

func (introspective) Name() string { return StrategyIntrospective }

func (introspective) Bind(recv reflect.Value, m Method) (InvokeFunc, error) {
	name, shape := m.Func.Name, m.Shape
	return func(ctx context.Context, event any) error {
		fn := recv.MethodByName(name)
		if !fn.IsValid() {
			return fmt.Errorf("method %s not found on %s", name, recv.Type())
		}
		return codegen.CallValue(ctx, fn, shape, event)
	}, nil
}

// HandleBased resolves the method value once at registration and calls it
// through reflection.
func HandleBased() Strategy { return handleBased{} }

type handleBased struct{}

func (handleBased) Name() string { return StrategyHandle }

func (handleBased) Bind(recv reflect.Value, m Method) (InvokeFunc, error) {
	fn := recv.Method(m.Func.Index)
	shape := m.Shape
	return func(ctx context.Context, event any) error {
		return codegen.CallValue(ctx, fn, shape, event)
	}, nil
}

// Generated is the strategy backed by a code backend. Invokers are compiled
// once per (type, method) pair; event types registered with
// codegen.RegisterEvent are called without reflection.
type Generated struct {
	backend codegen.Backend
	logger  *slog.Logger
}

// NewGenerated creates a generated strategy on backend. A nil backend or one
// whose Init fails yields an *UnsupportedOperationError.
func NewGenerated(backend codegen.Backend) (*Generated, error) {
	if backend == nil {
		return nil, &UnsupportedOperationError{
			Op:     "generated invocation",
			Reason: "no code generation backend available",
		}
	}
	if ini, ok := backend.(codegen.Initializer); ok {
		if err := ini.Init(); err != nil {
			return nil, &UnsupportedOperationError{
				Op:     "generated invocation",
				Reason: "code generation backend failed to initialize",
				Err:    err,
			}
		}
	}
	return &Generated{backend: backend, logger: slog.Default()}, nil
}

// Name implements Strategy.
func (g *Generated) Name() string { return StrategyGenerated }

// Backend returns the code backend, which also synthesizes schema types.
func (g *Generated) Backend() codegen.Backend { return g.backend }

// Bind implements Strategy.
func (g *Generated) Bind(recv reflect.Value, m Method) (InvokeFunc, error) {
	c, err := codegen.Compile(m.Receiver, m.Func.Name)
	if err != nil {
		return nil, err
	}
	if !c.Static() {
		g.logger.Debug("no typed adapter for event, using reflective call",
			"method", m.Receiver.String()+"."+m.Func.Name,
			"event_type", m.EventType.String())
	}
	return c.Bind(recv)
}

// StrategyByName returns the named strategy. backend is used only for
// StrategyGenerated.
func StrategyByName(name string, backend codegen.Backend) (Strategy, error) {
	switch name {
	case StrategyIntrospective:
		return Introspective(), nil
	case StrategyHandle, "":
		return HandleBased(), nil
	case StrategyGenerated:
		g, err := NewGenerated(backend)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown invocation strategy %q", name)
}

// backendOf returns the code backend behind s, if any.
func backendOf(s Strategy) (codegen.Backend, bool) {
	b, ok := s.(interface{ Backend() codegen.Backend })
	if !ok || b.Backend() == nil {
		return nil, false
	}
	return b.Backend(), true
}
