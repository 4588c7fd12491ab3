package protocol

// Wire error codes. The standard JSON-RPC range is reserved for parse and
// structure errors; the -32000 block carries gateway protocol errors and the
// -32010 block carries backend-mapped errors. These values are stable: they
// are part of the wire contract with clients.
const (
	// Standard JSON-RPC 2.0 codes.
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Gateway protocol codes.
	CodeNotInitialized     = -32000
	CodeAlreadyInitialized = -32001
	CodeShuttingDown       = -32002
	CodeDuplicateRequestID = -32003

	// CodeRequestCancelled is the terminal code for a cancelled operation.
	CodeRequestCancelled = -32800

	// Backend-mapped codes. The backend's own message text is preserved in
	// the error message for diagnostics.
	CodeBackendAuth        = -32010
	CodeBackendRateLimited = -32011
	CodeContentFiltered    = -32012
	CodeBackendFailure     = -32013
)
