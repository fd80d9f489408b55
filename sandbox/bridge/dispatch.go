package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/vshell/vshell/capability"
)

// Dispatcher is the bridge's consumer side: it drains SharedRequest slots
// and resolves each one against the shell's own capability.FileSystem/
// Fetcher/Executor/Clock (spec §4.8), enforcing the per-operation timeout
// distinct from the worker host's per-execution timeout.
type Dispatcher struct {
	FS       capability.FileSystem
	Fetcher  capability.Fetcher
	Executor capability.Executor
	Clock    capability.Clock
}

func NewDispatcher(fs capability.FileSystem, fetcher capability.Fetcher, exec capability.Executor, clock capability.Clock) *Dispatcher {
	if clock == nil {
		clock = capability.SystemClock{}
	}
	return &Dispatcher{FS: fs, Fetcher: fetcher, Executor: exec, Clock: clock}
}

// Serve runs the consumer loop for one SharedRequest until ctx is
// cancelled, dispatching each READY request and resolving it. Cancelling
// ctx also closes req, so the WaitReady goroutine of the final iteration
// wakes up and exits instead of blocking forever on a request nothing will
// ever submit again.
func (d *Dispatcher) Serve(ctx context.Context, req *SharedRequest) {
	for {
		done := make(chan struct{})
		var op OpCode
		var path, data []byte
		var flags, mode uint32
		var ok bool
		go func() {
			op, path, data, flags, mode, ok = req.WaitReady()
			close(done)
		}()
		select {
		case <-ctx.Done():
			req.Close()
			<-done
			return
		case <-done:
		}
		if !ok {
			return
		}
		d.handle(req, op, string(path), data, flags, mode)
	}
}

func (d *Dispatcher) handle(req *SharedRequest, op OpCode, path string, data []byte, flags, mode uint32) {
	opCtx, cancel := context.WithTimeout(context.Background(), PerOpTimeout)
	defer cancel()

	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go d.dispatchOne(op, path, data, mode, resultCh, errCh)

	select {
	case <-opCtx.Done():
		req.Fail(ErrTimeout, "bridge: op %d timed out after %s", op, PerOpTimeout)
	case result := <-resultCh:
		req.Resolve(result)
	case err := <-errCh:
		req.Fail(classifyError(err), "%v", err)
	}
}

func (d *Dispatcher) dispatchOne(op OpCode, path string, data []byte, mode uint32, resultCh chan<- []byte, errCh chan<- error) {
	fsys := d.FS
	switch op {
	case OpReadFile:
		s, err := fsys.ReadFile(path)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- []byte(s)
	case OpWriteFile:
		if err := fsys.WriteFile(path, string(data)); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpAppendFile:
		if err := fsys.AppendFile(path, string(data)); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpExists:
		if fsys.Exists(path) {
			resultCh <- []byte{1}
		} else {
			resultCh <- []byte{0}
		}
	case OpStat, OpLstat:
		var info capability.Stat
		var err error
		if op == OpStat {
			info, err = fsys.Stat(path)
		} else {
			info, err = fsys.Lstat(path)
		}
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- EncodeStat(StatResult{
			IsFile:      info.IsFile,
			IsDirectory: info.IsDirectory,
			IsSymlink:   info.IsSymlink,
			Mode:        info.Mode,
			Size:        info.Size,
			MtimeMs:     info.MtimeMS,
		})
	case OpReaddir:
		entries, err := fsys.ReadDir(path)
		if err != nil {
			errCh <- err
			return
		}
		encoded, err := cbor.Marshal(entries)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- encoded
	case OpMkdir:
		if err := fsys.Mkdir(path, capability.MkdirOpts{Recursive: mode&1 != 0}); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpRemove:
		if err := fsys.Rm(path, capability.RmOpts{Recursive: mode&1 != 0, Force: mode&2 != 0}); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpSymlink:
		var payload symlinkPayload
		if err := cbor.Unmarshal(data, &payload); err != nil {
			errCh <- err
			return
		}
		if err := fsys.Symlink(payload.Target, payload.Link); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpReadlink:
		target, err := fsys.Readlink(path)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- []byte(target)
	case OpChmod:
		if err := fsys.Chmod(path, int32(mode)); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpRealpath:
		real, err := fsys.Realpath(path)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- []byte(real)
	case OpRename:
		var payload renamePayload
		if err := cbor.Unmarshal(data, &payload); err != nil {
			errCh <- err
			return
		}
		if err := fsys.Rename(payload.Old, payload.New); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpCopyFile:
		var payload copyPayload
		if err := cbor.Unmarshal(data, &payload); err != nil {
			errCh <- err
			return
		}
		if err := fsys.CopyFile(payload.Src, payload.Dst); err != nil {
			errCh <- err
			return
		}
		resultCh <- nil
	case OpWriteStdout:
		os.Stdout.Write(data)
		resultCh <- nil
	case OpWriteStderr:
		os.Stderr.Write(data)
		resultCh <- nil
	case OpExit:
		resultCh <- nil
	case OpHTTPRequest:
		d.dispatchFetch(data, resultCh, errCh)
	case OpExecCommand:
		d.dispatchExec(data, resultCh, errCh)
	default:
		errCh <- fmt.Errorf("bridge: unknown op code %d", op)
	}
}

func (d *Dispatcher) dispatchFetch(data []byte, resultCh chan<- []byte, errCh chan<- error) {
	if d.Fetcher == nil {
		errCh <- &CapabilityNotConfiguredError{Capability: "Fetcher"}
		return
	}
	var req FetchPayload
	if err := cbor.Unmarshal(data, &req); err != nil {
		errCh <- err
		return
	}
	resp, err := d.Fetcher.Fetch(req.URL, capability.FetchOpts{Method: req.Method, Headers: req.Headers, Body: req.Body})
	if err != nil {
		errCh <- err
		return
	}
	encoded, err := cbor.Marshal(FetchResultPayload{
		Status: resp.Status, StatusText: resp.StatusText,
		Headers: resp.Headers, Body: resp.Body, URL: resp.URL,
	})
	if err != nil {
		errCh <- err
		return
	}
	resultCh <- encoded
}

func (d *Dispatcher) dispatchExec(data []byte, resultCh chan<- []byte, errCh chan<- error) {
	if d.Executor == nil {
		errCh <- &CapabilityNotConfiguredError{Capability: "Executor"}
		return
	}
	var req ExecPayload
	if err := cbor.Unmarshal(data, &req); err != nil {
		errCh <- err
		return
	}
	resp, err := d.Executor.Exec(req.CommandLine, req.Stdin)
	if err != nil {
		errCh <- err
		return
	}
	encoded, err := cbor.Marshal(ExecResultPayload{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode})
	if err != nil {
		errCh <- err
		return
	}
	resultCh <- encoded
}

// CapabilityNotConfiguredError surfaces as NETWORK_NOT_CONFIGURED-style
// errors when a host omits an optional capability.
type CapabilityNotConfiguredError struct {
	Capability string
}

func (e *CapabilityNotConfiguredError) Error() string {
	return fmt.Sprintf("bridge: %s capability not configured", e.Capability)
}

func classifyError(err error) ErrorCode {
	if err == nil {
		return ErrNone
	}
	if _, ok := err.(*CapabilityNotConfiguredError); ok {
		return ErrNetworkNotConfigured
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return ErrExists
	default:
		return ErrIOError
	}
}
