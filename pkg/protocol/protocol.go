package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol tag expected on every message.
const Version = "2.0"

// Recognized method names.
const (
	MethodInitialize = "initialize"
	MethodGenerate   = "generate"
	MethodStream     = "stream"
	MethodCancel     = "cancel"
	MethodConfigure  = "configure"
	MethodShutdown   = "shutdown"
	MethodExit       = "exit"
)

// Request is a parsed inbound JSON-RPC message. A message without an
// identifier is a notification and never receives a response.
type Request struct {
	// JSONRPC is the protocol tag; always "2.0" after a successful parse.
	JSONRPC string `json:"jsonrpc"`

	// ID is the caller-supplied correlation identifier, preserved as raw
	// JSON (string or number). Nil for notifications.
	ID json.RawMessage `json:"id,omitempty"`

	// Method is the operation name.
	Method string `json:"method"`

	// Params carries the method-specific parameters, if any.
	Params json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message carries no identifier and
// therefore expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// IDKey returns the canonical in-flight map key for the request identifier.
// The key is the compacted raw JSON of the identifier, so a number and a
// string identifier with the same digits remain distinct.
func (r *Request) IDKey() string {
	return IDKey(r.ID)
}

// IDKey canonicalizes a raw JSON identifier into a map key.
func IDKey(id json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, id); err != nil {
		// Fall back to the raw bytes; Parse has already rejected anything
		// that is not a string or number.
		return string(bytes.TrimSpace(id))
	}
	return buf.String()
}

// ErrorObject is the structured error carried by an error response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface so an ErrorObject can travel through
// error returns inside the gateway before being serialized.
func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is an outbound JSON-RPC message. Exactly one of Result and Error
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// NewResult creates a success response echoing the given identifier.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewError creates an error response. A nil identifier serializes as null,
// which is the JSON-RPC convention for errors that could not be correlated.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// Notification creates an outbound notification (no identifier, no reply
// expected), used for the best-effort shutdown broadcast.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// MarshalNotification serializes an outbound notification.
func MarshalNotification(method string, params any) ([]byte, error) {
	return json.Marshal(&notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	})
}

// Marshal serializes the response to its wire form.
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Parse decodes and validates one inbound message. Failures are returned as
// *ErrorObject with the appropriate wire code (CodeParseError for malformed
// JSON, CodeInvalidRequest for a bad envelope) so the transport can answer
// without consulting higher layers.
func Parse(data []byte) (*Request, *ErrorObject) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &ErrorObject{
			Code:    CodeParseError,
			Message: "parse error",
			Data:    err.Error(),
		}
	}

	if req.JSONRPC != Version {
		return nil, &ErrorObject{
			Code:    CodeInvalidRequest,
			Message: fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC),
		}
	}

	if req.Method == "" {
		return nil, &ErrorObject{
			Code:    CodeInvalidRequest,
			Message: "method is required",
		}
	}

	if len(req.ID) > 0 {
		if err := validateID(req.ID); err != nil {
			return nil, &ErrorObject{
				Code:    CodeInvalidRequest,
				Message: err.Error(),
			}
		}
	}

	return &req, nil
}

// validateID enforces the identifier shape: a JSON string or number. An
// explicit null identifier is rejected rather than treated as a notification
// so that a client bug does not silently lose its response.
func validateID(id json.RawMessage) error {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 {
		return fmt.Errorf("id must be a string or number")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("id must be a valid string")
		}
		return nil
	case '{', '[', 't', 'f', 'n':
		return fmt.Errorf("id must be a string or number")
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("id must be a string or number")
		}
		return nil
	}
}
