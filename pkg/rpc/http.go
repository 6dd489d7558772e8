package rpc

import (
	"net/http"

	"github.com/lnaie/sfAuction/pkg/logger"
)

// Handler serves transport A: GET <endpoint>?jsonrpc=<url-encoded JSON
// request>, response body is the raw encoded JSON response. The CORS
// header permits cross-origin browser calls.
func Handler(reg *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Access-Control-Allow-Origin") == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		payload := r.URL.Query().Get("jsonrpc")
		req, err := ParseRequest([]byte(payload))
		if err != nil {
			writeResponse(w, NewErrorResponse(ID{}, asError(err)))
			return
		}

		resp := reg.Dispatch(r.Context(), req)
		if req.ID.IsAbsent() {
			// fire-and-forget: the response is computed but not sent
			w.WriteHeader(http.StatusOK)
			return
		}
		writeResponse(w, resp)
	})
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	b, err := resp.Encode()
	if err != nil {
		logger.Error("rpc_encode_response_failed", "error", err)
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(b); err != nil {
		logger.Debug("rpc_write_response_failed", "error", err)
	}
}

func asError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
