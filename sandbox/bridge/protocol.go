// Package bridge implements the worker bridge protocol: a fixed-layout
// request structure that lets a single sandbox worker (producer) serve
// synchronous capability requests from a single host (consumer).
//
// The reference layout is a shared-memory block a JS worker thread and its
// host poll with Atomics.wait/notify. Go has no SharedArrayBuffer between
// goroutines, so SharedRequest reproduces the same header/path/data/result
// layout and the same PENDING/READY/SUCCESS/ERROR state machine, but drives
// the transition with a sync.Cond instead of atomic wait/notify. The field
// sizes and op/error code values are kept bit-for-bit faithful so the
// encoding logic (and the STAT result layout) could be pointed at a real
// shared-memory segment without changing callers.
package bridge

import "time"

// OpCode identifies the capability operation a worker is requesting.
type OpCode uint32

const (
	OpReadFile OpCode = iota + 1
	OpWriteFile
	OpAppendFile
	OpStat
	OpLstat
	OpReaddir
	OpMkdir
	OpRemove
	OpExists
	OpSymlink
	OpReadlink
	OpChmod
	OpRealpath
	OpRename
	OpCopyFile
	OpWriteStdout
	OpWriteStderr
	OpExit
	OpHTTPRequest
	OpExecCommand
)

// Status is the producer/consumer handshake state.
type Status uint32

const (
	StatusPending Status = iota
	StatusReady
	StatusSuccess
	StatusError
)

// ErrorCode enumerates the bridge's typed failure reasons.
type ErrorCode uint32

const (
	ErrNone ErrorCode = iota
	ErrNotFound
	ErrIsDirectory
	ErrNotDirectory
	ErrExists
	ErrPermissionDenied
	ErrInvalidPath
	ErrIOError
	ErrTimeout
	ErrNetworkError
	ErrNetworkNotConfigured
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "none"
	case ErrNotFound:
		return "not_found"
	case ErrIsDirectory:
		return "is_directory"
	case ErrNotDirectory:
		return "not_directory"
	case ErrExists:
		return "exists"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrInvalidPath:
		return "invalid_path"
	case ErrIOError:
		return "io_error"
	case ErrTimeout:
		return "timeout"
	case ErrNetworkError:
		return "network_error"
	case ErrNetworkNotConfigured:
		return "network_not_configured"
	default:
		return "unknown"
	}
}

// Layout sizes, spec §4.8: 32-byte header, 4096-byte path buffer, 1 MiB
// data buffer.
const (
	HeaderSize = 32
	PathSize   = 4096
	DataSize   = 1 << 20
	StatSize   = 24

	// PerOpTimeout bounds a single bridge round trip; distinct from the
	// worker host's longer per-execution timeout.
	PerOpTimeout = 5 * time.Second
)

// Header mirrors the 32-byte, eight-uint32-field record: op_code, status,
// path_len, data_len, result_len, error_code, flags, mode.
type Header struct {
	OpCode    OpCode
	Status    Status
	PathLen   uint32
	DataLen   uint32
	ResultLen uint32
	ErrorCode ErrorCode
	Flags     uint32
	Mode      uint32
}

// StatResult is the 24-byte encoding a STAT/LSTAT response fills into the
// result buffer: is_file:u8, is_directory:u8, is_symlink:u8, pad,
// mode:i32, size:f64, mtime_ms:f64.
type StatResult struct {
	IsFile      bool
	IsDirectory bool
	IsSymlink   bool
	Mode        int32
	Size        float64
	MtimeMs     float64
}
