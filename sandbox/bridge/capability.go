package bridge

// FetchPayload/ExecPayload are the CBOR-encoded request/response shapes
// carried in the bridge's data buffer for HTTP_REQUEST and EXEC_COMMAND —
// the two ops whose arguments (a URL plus headers map, a command line plus
// stdin) don't fit the fixed path/data split the other ops use.
// FetchPayload is capability.FetchOpts plus the URL; FetchResultPayload and
// ExecResultPayload mirror capability.FetchResult/capability.ExecResult
// field-for-field, so the dispatcher can translate directly to and from the
// capability package's own types.
type FetchPayload struct {
	URL     string            `cbor:"url"`
	Method  string            `cbor:"method"`
	Headers map[string]string `cbor:"headers,omitempty"`
	Body    string            `cbor:"body,omitempty"`
}

type FetchResultPayload struct {
	Status     int               `cbor:"status"`
	StatusText string            `cbor:"status_text"`
	Headers    map[string]string `cbor:"headers"`
	Body       string            `cbor:"body"`
	URL        string            `cbor:"url"`
}

type ExecPayload struct {
	CommandLine string `cbor:"command_line"`
	Stdin       string `cbor:"stdin,omitempty"`
}

type ExecResultPayload struct {
	Stdout   string `cbor:"stdout"`
	Stderr   string `cbor:"stderr"`
	ExitCode int    `cbor:"exit_code"`
}

type renamePayload struct {
	Old string `cbor:"old"`
	New string `cbor:"new"`
}

type copyPayload struct {
	Src string `cbor:"src"`
	Dst string `cbor:"dst"`
}

type symlinkPayload struct {
	Target string `cbor:"target"`
	Link   string `cbor:"link"`
}
