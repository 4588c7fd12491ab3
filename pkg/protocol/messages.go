package protocol

import "encoding/json"

// ProtocolVersion is the capability/version descriptor returned by
// initialize. Clients use it to confirm they speak the same dialect.
const ProtocolVersion = "2024-11-05"

// ClientInfo is the optional client metadata accepted by initialize.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// InitializeParams are the parameters of the initialize method. All fields
// are optional.
type InitializeParams struct {
	ClientInfo *ClientInfo `json:"clientInfo,omitempty"`
}

// ServerInfo identifies the gateway in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises what the gateway supports.
type Capabilities struct {
	Generate  bool `json:"generate"`
	Stream    bool `json:"stream"`
	Cancel    bool `json:"cancel"`
	Configure bool `json:"configure"`
}

// InitializeResult is the fixed descriptor returned by a successful
// initialize call.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// GenerateParams are the parameters shared by generate and stream.
type GenerateParams struct {
	Prompt        string   `json:"prompt"`
	Model         string   `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     *int     `json:"maxTokens,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// GenerateResult is the terminal payload of a non-streaming generate.
type GenerateResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`

	// Echoed generation options, present when the caller supplied them.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// StreamResult is the payload of every stream response. Intermediate
// responses carry a chunk with done=false; the single terminal response
// carries empty content with done=true.
type StreamResult struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// CancelParams are the parameters of the cancel method. RequestID is kept
// raw so string and number identifiers resolve to the same in-flight keys
// the originating requests registered under.
type CancelParams struct {
	RequestID json.RawMessage `json:"requestId"`
}

// CancelResult acknowledges a cancel method call. Cancelled is always true:
// a missing target means the operation already resolved.
type CancelResult struct {
	Cancelled bool `json:"cancelled"`
}

// ConfigureParams are the parameters of the configure method.
type ConfigureParams struct {
	Configuration map[string]any `json:"configuration"`
}

// ConfigureResult acknowledges receipt of a configure call. Settings are
// acknowledged but do not mutate shared generation defaults.
type ConfigureResult struct {
	Accepted bool `json:"accepted"`
}
