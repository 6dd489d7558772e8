package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the single supported protocol version tag.
const Version = "2.0"

// ID correlates a request with its response. It is either absent
// (fire-and-forget), a string, or an integer, and is echoed verbatim.
type ID struct {
	present  bool
	isString bool
	str      string
	num      int64
}

// StringID builds a string-valued message id.
func StringID(s string) ID { return ID{present: true, isString: true, str: s} }

// IntID builds an integer-valued message id.
func IntID(n int64) ID { return ID{present: true, num: n} }

func (id ID) IsAbsent() bool { return !id.present }

func (id ID) Equal(other ID) bool { return id == other }

func (id ID) String() string {
	switch {
	case !id.present:
		return "<absent>"
	case id.isString:
		return id.str
	default:
		return strconv.FormatInt(id.num, 10)
	}
}

// raw renders the id for the wire, or nil when absent.
func (id ID) raw() json.RawMessage {
	switch {
	case !id.present:
		return nil
	case id.isString:
		b, _ := json.Marshal(id.str)
		return b
	default:
		return json.RawMessage(strconv.FormatInt(id.num, 10))
	}
}

func parseID(raw json.RawMessage) (ID, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ID{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ID{}, err
		}
		return StringID(s), nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return ID{}, err
	}
	return IntID(n), nil
}

// Request is one protocol call. Exactly one of Named or Positional is
// set when parameters are present.
type Request struct {
	ID         ID
	Method     string
	Named      map[string]json.RawMessage
	Positional []json.RawMessage
}

// NewNamedRequest builds a request carrying named parameters.
func NewNamedRequest(id ID, method string, params map[string]any) (*Request, error) {
	named := make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal param %s: %w", k, err)
		}
		named[k] = b
	}
	return &Request{ID: id, Method: method, Named: named}, nil
}

// NewPositionalRequest builds a request carrying positional parameters.
func NewPositionalRequest(id ID, method string, params ...any) (*Request, error) {
	pos := make([]json.RawMessage, 0, len(params))
	for i, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal param %d: %w", i, err)
		}
		pos = append(pos, b)
	}
	return &Request{ID: id, Method: method, Positional: pos}, nil
}

type requestEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Encode renders the request for the wire.
func (r *Request) Encode() ([]byte, error) {
	env := requestEnvelope{Jsonrpc: Version, ID: r.ID.raw(), Method: r.Method}
	switch {
	case r.Named != nil:
		b, err := json.Marshal(r.Named)
		if err != nil {
			return nil, err
		}
		env.Params = b
	case r.Positional != nil:
		b, err := json.Marshal(r.Positional)
		if err != nil {
			return nil, err
		}
		env.Params = b
	}
	return json.Marshal(env)
}

// ParamsString renders the arguments for diagnostics fields.
func (r *Request) ParamsString() string {
	var buf bytes.Buffer
	if r.Named != nil {
		first := true
		for k, v := range r.Named {
			if !first {
				buf.WriteString(", ")
			}
			first = false
			buf.WriteString(k)
			buf.WriteByte('=')
			buf.Write(v)
		}
		return buf.String()
	}
	for i, v := range r.Positional {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.Write(v)
	}
	return buf.String()
}

// ParseRequest decodes a wire request. Malformed payloads fail with
// CodeParse; a version tag other than Version fails with
// CodeInvalidRequest.
func ParseRequest(data []byte) (*Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeParse, "parse request: %v", err)
	}
	if env.Jsonrpc != Version {
		return nil, Errorf(CodeInvalidRequest, "jsonrpc must be %q", Version)
	}
	id, err := parseID(env.ID)
	if err != nil {
		return nil, Errorf(CodeInvalidRequest, "invalid id: %v", err)
	}
	req := &Request{ID: id, Method: env.Method}
	if len(env.Params) > 0 {
		switch env.Params[0] {
		case '[':
			if err := json.Unmarshal(env.Params, &req.Positional); err != nil {
				return nil, Errorf(CodeParse, "parse positional params: %v", err)
			}
		case '{':
			if err := json.Unmarshal(env.Params, &req.Named); err != nil {
				return nil, Errorf(CodeParse, "parse named params: %v", err)
			}
		default:
			return nil, Errorf(CodeInvalidRequest, "params must be an object or array")
		}
	}
	return req, nil
}

// Response is either a result or an error, never both.
type Response struct {
	ID     ID
	Result json.RawMessage
	Err    *Error
}

// NewResultResponse wraps an already-encoded result value.
func NewResultResponse(id ID, result json.RawMessage) *Response {
	return &Response{ID: id, Result: result}
}

// NewErrorResponse wraps a failure.
func NewErrorResponse(id ID, err *Error) *Response {
	return &Response{ID: id, Err: err}
}

type responseEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *int            `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    string          `json:"data,omitempty"`
}

// Encode renders the response for the wire.
func (r *Response) Encode() ([]byte, error) {
	env := responseEnvelope{Jsonrpc: Version, ID: r.ID.raw()}
	if r.Err != nil {
		code := r.Err.Code
		env.Error = &code
		env.Message = r.Err.Message
		env.Data = r.Err.Data
	} else {
		env.Result = r.Result
	}
	return json.Marshal(env)
}

// ParseResponse decodes a wire response.
func ParseResponse(data []byte) (*Response, error) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeParse, "parse response: %v", err)
	}
	if env.Jsonrpc != Version {
		return nil, Errorf(CodeInvalidRequest, "jsonrpc must be %q", Version)
	}
	id, err := parseID(env.ID)
	if err != nil {
		return nil, Errorf(CodeInvalidRequest, "invalid id: %v", err)
	}
	if env.Error != nil {
		return NewErrorResponse(id, &Error{Code: *env.Error, Message: env.Message, Data: env.Data}), nil
	}
	if env.Result != nil {
		return NewResultResponse(id, env.Result), nil
	}
	return nil, Errorf(CodeInvalidRequest, "response must contain result or error")
}

// Unwrap decodes the result into out, or surfaces the carried error.
func (r *Response) Unwrap(out any) error {
	if r.Err != nil {
		return r.Err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}
