package bridge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshell/vshell/capability/osfs"
	"github.com/vshell/vshell/sandbox/bridge"
)

func TestStatRoundTrip(t *testing.T) {
	original := bridge.StatResult{
		IsFile: true, IsDirectory: false, IsSymlink: false,
		Mode: 0o644, Size: 1234, MtimeMs: 1700000000000,
	}
	encoded := bridge.EncodeStat(original)
	assert.Len(t, encoded, bridge.StatSize)

	decoded, err := bridge.DecodeStat(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeStatShortBuffer(t *testing.T) {
	_, err := bridge.DecodeStat(make([]byte, 4))
	assert.Error(t, err)
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "not_found", bridge.ErrNotFound.String())
	assert.Equal(t, "unknown", bridge.ErrorCode(999).String())
}

func TestSharedRequestSubmitResolve(t *testing.T) {
	req := bridge.NewSharedRequest()

	go func() {
		op, path, _, _, _, _ := req.WaitReady()
		assert.Equal(t, bridge.OpReadFile, op)
		assert.Equal(t, "/tmp/x", string(path))
		req.Resolve([]byte("contents"))
	}()

	result, errCode, _ := req.Submit(bridge.OpReadFile, []byte("/tmp/x"), nil, 0, 0)
	assert.Equal(t, bridge.ErrNone, errCode)
	assert.Equal(t, "contents", string(result))
}

func TestSharedRequestSubmitFail(t *testing.T) {
	req := bridge.NewSharedRequest()

	go func() {
		req.WaitReady()
		req.Fail(bridge.ErrNotFound, "missing: %s", "/tmp/x")
	}()

	_, errCode, errMsg := req.Submit(bridge.OpReadFile, []byte("/tmp/x"), nil, 0, 0)
	assert.Equal(t, bridge.ErrNotFound, errCode)
	assert.Contains(t, errMsg, "/tmp/x")
}

func TestDispatcherReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, req)

	result, errCode, _ := req.Submit(bridge.OpReadFile, []byte(path), nil, 0, 0)
	require.Equal(t, bridge.ErrNone, errCode)
	assert.Equal(t, "hello", string(result))
}

func TestDispatcherReadFileNotFound(t *testing.T) {
	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, req)

	_, errCode, errMsg := req.Submit(bridge.OpReadFile, []byte("/does/not/exist"), nil, 0, 0)
	assert.Equal(t, bridge.ErrNotFound, errCode)
	assert.NotEmpty(t, errMsg)
}

func TestDispatcherExists(t *testing.T) {
	dir := t.TempDir()
	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, req)

	result, errCode, _ := req.Submit(bridge.OpExists, []byte(dir), nil, 0, 0)
	require.Equal(t, bridge.ErrNone, errCode)
	assert.Equal(t, []byte{1}, result)
}

func TestDispatcherHTTPRequestWithoutFetcherConfigured(t *testing.T) {
	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, req)

	_, errCode, errMsg := req.Submit(bridge.OpHTTPRequest, nil, nil, 0, 0)
	assert.Equal(t, bridge.ErrNetworkNotConfigured, errCode)
	assert.Contains(t, errMsg, "Fetcher")
}

func TestDispatcherStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, req)

	result, errCode, _ := req.Submit(bridge.OpStat, []byte(path), nil, 0, 0)
	require.Equal(t, bridge.ErrNone, errCode)
	stat, err := bridge.DecodeStat(result)
	require.NoError(t, err)
	assert.True(t, stat.IsFile)
	assert.Equal(t, float64(2), stat.Size)
}

func TestPerOpTimeoutIsBounded(t *testing.T) {
	assert.LessOrEqual(t, bridge.PerOpTimeout, 5*time.Second)
}

// TestDispatcherServeStopsOnCancel guards against Serve leaking its
// WaitReady goroutine when ctx is cancelled with no request ever submitted.
func TestDispatcherServeStopsOnCancel(t *testing.T) {
	d := bridge.NewDispatcher(osfs.FS{}, nil, nil, nil)
	req := bridge.NewSharedRequest()

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan struct{})
	go func() {
		d.Serve(ctx, req)
		close(serveDone)
	}()

	cancel()

	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
