package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode int // 0 means success
	}{
		{
			name:  "valid request with number id",
			input: `{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		},
		{
			name:  "valid request with string id",
			input: `{"jsonrpc":"2.0","id":"abc","method":"generate","params":{"prompt":"hi"}}`,
		},
		{
			name:  "valid notification",
			input: `{"jsonrpc":"2.0","method":"exit"}`,
		},
		{
			name:     "malformed json",
			input:    `{"jsonrpc":"2.0",`,
			wantCode: CodeParseError,
		},
		{
			name:     "missing jsonrpc tag",
			input:    `{"id":1,"method":"initialize"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "wrong jsonrpc version",
			input:    `{"jsonrpc":"1.0","id":1,"method":"initialize"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "missing method",
			input:    `{"jsonrpc":"2.0","id":1}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "object id rejected",
			input:    `{"jsonrpc":"2.0","id":{"a":1},"method":"generate"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "null id rejected",
			input:    `{"jsonrpc":"2.0","id":null,"method":"generate"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "boolean id rejected",
			input:    `{"jsonrpc":"2.0","id":true,"method":"generate"}`,
			wantCode: CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, errObj := Parse([]byte(tt.input))

			if tt.wantCode == 0 {
				if errObj != nil {
					t.Fatalf("Parse() unexpected error: %v", errObj)
				}
				if req == nil {
					t.Fatal("Parse() returned nil request without error")
				}
				return
			}

			if errObj == nil {
				t.Fatalf("Parse() expected error code %d, got success", tt.wantCode)
			}
			if errObj.Code != tt.wantCode {
				t.Errorf("Parse() error code = %d, want %d", errObj.Code, tt.wantCode)
			}
		})
	}
}

func TestRequest_IsNotification(t *testing.T) {
	req, errObj := Parse([]byte(`{"jsonrpc":"2.0","method":"exit"}`))
	if errObj != nil {
		t.Fatalf("Parse() error: %v", errObj)
	}
	if !req.IsNotification() {
		t.Error("expected message without id to be a notification")
	}

	req, errObj = Parse([]byte(`{"jsonrpc":"2.0","id":7,"method":"cancel"}`))
	if errObj != nil {
		t.Fatalf("Parse() error: %v", errObj)
	}
	if req.IsNotification() {
		t.Error("expected message with id not to be a notification")
	}
}

func TestIDKey(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{name: "number vs string distinct", a: `3`, b: `"3"`, same: false},
		{name: "whitespace normalized", a: ` 3 `, b: `3`, same: true},
		{name: "identical strings", a: `"req-1"`, b: `"req-1"`, same: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := IDKey(json.RawMessage(tt.a))
			kb := IDKey(json.RawMessage(tt.b))
			if (ka == kb) != tt.same {
				t.Errorf("IDKey(%s) = %q, IDKey(%s) = %q, same = %v, want %v",
					tt.a, ka, tt.b, kb, ka == kb, tt.same)
			}
		})
	}
}

func TestResponse_Marshal(t *testing.T) {
	resp := NewResult(json.RawMessage(`1`), &GenerateResult{Content: "hello", Model: "m"})
	data, err := resp.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if decoded["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want 2.0", decoded["jsonrpc"])
	}
	if decoded["id"] != float64(1) {
		t.Errorf("id = %v, want 1", decoded["id"])
	}
	result, ok := decoded["result"].(map[string]any)
	if !ok {
		t.Fatalf("result missing or wrong type: %v", decoded["result"])
	}
	if result["content"] != "hello" {
		t.Errorf("result.content = %v, want hello", result["content"])
	}
}

func TestNewError_NullID(t *testing.T) {
	resp := NewError(nil, CodeParseError, "parse error", nil)
	data, err := resp.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), `"id":null`) {
		t.Errorf("expected null id in %s", data)
	}
	if !strings.Contains(string(data), `"code":-32700`) {
		t.Errorf("expected code -32700 in %s", data)
	}
}

func TestMarshalNotification(t *testing.T) {
	data, err := MarshalNotification(MethodShutdown, nil)
	if err != nil {
		t.Fatalf("MarshalNotification() error: %v", err)
	}
	if strings.Contains(string(data), `"id"`) {
		t.Errorf("notification must not carry an id: %s", data)
	}
	if !strings.Contains(string(data), `"method":"shutdown"`) {
		t.Errorf("expected shutdown method in %s", data)
	}
}
