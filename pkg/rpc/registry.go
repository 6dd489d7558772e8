package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sfauction_rpc_dispatch_total",
	Help: "RPC dispatches by method and outcome.",
}, []string{"method", "outcome"})

// Kind is the declared wire type of one formal parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDecimal
	KindTime
)

// Param declares one formal parameter of a registered operation.
type Param struct {
	Name     string
	Kind     Kind
	Optional bool
}

// HandlerFunc executes an operation. args holds the converted parameter
// values in declaration order; ctx is the dispatcher's own call context
// and is never read from client-supplied arguments.
type HandlerFunc func(ctx context.Context, args []any) (any, error)

type operation struct {
	params []Param
	fn     HandlerFunc
}

// Registry is a static method table built once at startup. It replaces
// runtime lookup-by-name with an explicit map from method name to a
// typed handler and its parameter schema.
type Registry struct {
	ops map[string]operation
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]operation)}
}

// Register adds a method. Registering a duplicate name panics; the table
// is assembled once during wiring and a collision is a programming error.
func (r *Registry) Register(method string, params []Param, fn HandlerFunc) {
	if _, exists := r.ops[method]; exists {
		panic(fmt.Sprintf("rpc: method %q registered twice", method))
	}
	r.ops[method] = operation{params: params, fn: fn}
}

// Methods returns the registered method names.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.ops))
	for m := range r.ops {
		out = append(out, m)
	}
	return out
}

// Dispatch resolves the request's method case-sensitively, binds and
// converts its arguments, runs the handler, and builds exactly one
// response. Handler failures become ErrorResponses: a carried *Error
// keeps its own code, anything else maps to the reserved server-error
// code. The original error text is preserved; the data field records the
// method and serialized arguments for diagnostics.
func (r *Registry) Dispatch(ctx context.Context, req *Request) *Response {
	op, ok := r.ops[req.Method]
	if !ok {
		dispatchTotal.WithLabelValues(req.Method, "method_not_found").Inc()
		return NewErrorResponse(req.ID, Errorf(CodeMethodNotFound, "%s", req.Method))
	}

	args := make([]any, len(op.params))
	for i, p := range op.params {
		raw, present := r.argFor(req, i, p)
		if !present {
			if p.Optional {
				args[i] = zeroFor(p.Kind)
				continue
			}
			dispatchTotal.WithLabelValues(req.Method, "invalid_params").Inc()
			return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "missing required argument: %s", p.Name))
		}
		v, err := convert(raw, p.Kind)
		if err != nil {
			dispatchTotal.WithLabelValues(req.Method, "invalid_params").Inc()
			return NewErrorResponse(req.ID, Errorf(CodeInvalidParams, "argument %s: %v", p.Name, err))
		}
		args[i] = v
	}

	result, err := op.fn(ctx, args)
	if err != nil {
		dispatchTotal.WithLabelValues(req.Method, "error").Inc()
		return NewErrorResponse(req.ID, r.wrapHandlerError(req, err))
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		dispatchTotal.WithLabelValues(req.Method, "error").Inc()
		return NewErrorResponse(req.ID, Errorf(CodeInternal, "encode result: %v", err))
	}
	dispatchTotal.WithLabelValues(req.Method, "ok").Inc()
	return NewResultResponse(req.ID, encoded)
}

func (r *Registry) argFor(req *Request, i int, p Param) (json.RawMessage, bool) {
	if req.Named != nil {
		raw, ok := req.Named[p.Name]
		return raw, ok
	}
	if i < len(req.Positional) {
		return req.Positional[i], true
	}
	return nil, false
}

func (r *Registry) wrapHandlerError(req *Request, err error) *Error {
	data := fmt.Sprintf("Method=%s, Params=%s", req.Method, req.ParamsString())
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if rpcErr.Data == "" {
			return &Error{Code: rpcErr.Code, Message: rpcErr.Message, Data: data}
		}
		return rpcErr
	}
	return &Error{Code: CodeServerError, Message: err.Error(), Data: data}
}

func zeroFor(k Kind) any {
	switch k {
	case KindInt:
		return int64(0)
	case KindDecimal:
		return decimal.Zero
	case KindTime:
		return time.Time{}
	default:
		return ""
	}
}

func convert(raw json.RawMessage, k Kind) (any, error) {
	switch k {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return n, nil
	case KindDecimal:
		// decimal accepts both JSON numbers and numeric strings.
		var d decimal.Decimal
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case KindTime:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown parameter kind %d", k)
	}
}
