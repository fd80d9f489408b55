package bridge

import (
	"fmt"
	"sync"
)

// SharedRequest is one in-flight bridge round trip. A worker goroutine
// (producer) fills Header/Path/Data and calls Submit; a host goroutine
// (consumer) calls WaitReady, dispatches by OpCode, then calls Resolve or Fail.
// Submit blocks the producer until Resolve/Fail flips the status back out
// of READY, the same "producer waits on status" contract spec §4.8
// describes for the Atomics-based version.
type SharedRequest struct {
	mu     sync.Mutex
	cond   *sync.Cond
	header Header
	closed bool

	path   []byte
	data   []byte
	result []byte
	errMsg string
}

// NewSharedRequest allocates one reusable request slot.
func NewSharedRequest() *SharedRequest {
	r := &SharedRequest{
		path: make([]byte, 0, PathSize),
		data: make([]byte, 0, DataSize),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Submit fills the request (producer path) and blocks until the consumer
// has resolved it, matching spec §4.8's "zero header; fill op/path/data;
// set status READY; notify; wait while status == READY" sequence.
func (r *SharedRequest) Submit(op OpCode, path []byte, data []byte, flags, mode uint32) (result []byte, errCode ErrorCode, errMsg string) {
	r.mu.Lock()
	if len(path) > PathSize {
		path = path[:PathSize]
	}
	if len(data) > DataSize {
		data = data[:DataSize]
	}
	r.header = Header{OpCode: op, Status: StatusReady, PathLen: uint32(len(path)), DataLen: uint32(len(data)), Flags: flags, Mode: mode}
	r.path = append(r.path[:0], path...)
	r.data = append(r.data[:0], data...)
	r.result = nil
	r.errMsg = ""
	r.cond.Broadcast()

	for r.header.Status == StatusReady {
		r.cond.Wait()
	}

	result, errMsg = r.result, r.errMsg
	errCode = r.header.ErrorCode
	r.mu.Unlock()
	return result, errCode, errMsg
}

// WaitReady blocks the consumer until a producer has a request pending
// (status READY), then returns a snapshot of the request to dispatch. ok
// is false if Close was called while waiting, telling the caller to stop
// rather than dispatch a zero-value request.
func (r *SharedRequest) WaitReady() (op OpCode, path, data []byte, flags, mode uint32, ok bool) {
	r.mu.Lock()
	for r.header.Status != StatusReady && !r.closed {
		r.cond.Wait()
	}
	if r.closed {
		r.mu.Unlock()
		return 0, nil, nil, 0, 0, false
	}
	op = r.header.OpCode
	path = append([]byte(nil), r.path...)
	data = append([]byte(nil), r.data...)
	flags, mode = r.header.Flags, r.header.Mode
	r.mu.Unlock()
	return op, path, data, flags, mode, true
}

// Close wakes any goroutine blocked in WaitReady so it can exit instead of
// waiting forever for a request that will never arrive (bridge shutdown).
func (r *SharedRequest) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Resolve completes the pending request successfully (consumer path).
func (r *SharedRequest) Resolve(result []byte) {
	r.mu.Lock()
	if len(result) > DataSize {
		result = result[:DataSize]
	}
	r.result = result
	r.header.ResultLen = uint32(len(result))
	r.header.ErrorCode = ErrNone
	r.header.Status = StatusSuccess
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Fail completes the pending request with a typed error code plus message.
func (r *SharedRequest) Fail(code ErrorCode, format string, args ...any) {
	r.mu.Lock()
	r.errMsg = fmt.Sprintf(format, args...)
	r.header.ErrorCode = code
	r.header.Status = StatusError
	r.cond.Broadcast()
	r.mu.Unlock()
}

// EncodeStat packs a StatResult into the 24-byte wire encoding spec §4.8
// defines for STAT/LSTAT responses.
func EncodeStat(s StatResult) []byte {
	out := make([]byte, StatSize)
	if s.IsFile {
		out[0] = 1
	}
	if s.IsDirectory {
		out[1] = 1
	}
	if s.IsSymlink {
		out[2] = 1
	}
	putInt32(out[4:8], s.Mode)
	putFloat64(out[8:16], s.Size)
	putFloat64(out[16:24], s.MtimeMs)
	return out
}

// DecodeStat is the inverse of EncodeStat, used by tests and by callers
// that receive a STAT result over the bridge.
func DecodeStat(b []byte) (StatResult, error) {
	if len(b) < StatSize {
		return StatResult{}, fmt.Errorf("bridge: short STAT result (%d bytes)", len(b))
	}
	return StatResult{
		IsFile:      b[0] != 0,
		IsDirectory: b[1] != 0,
		IsSymlink:   b[2] != 0,
		Mode:        getInt32(b[4:8]),
		Size:        getFloat64(b[8:16]),
		MtimeMs:     getFloat64(b[16:24]),
	}, nil
}
