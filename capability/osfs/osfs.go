// Package osfs implements capability.FileSystem, capability.Fetcher, and
// capability.Executor against the real operating system — the concrete
// implementation the capability package's own doc comment says lives
// outside the interpreter core. cmd/ front ends wire this in; the
// interpreter, glob walker, and sandbox bridge never import it directly.
package osfs

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vshell/vshell/capability"
)

// FS is an OS-backed capability.FileSystem rooted at nothing in
// particular — paths are resolved relative to whatever cwd the caller
// passes, matching the shell's own notion of a per-session cwd.
type FS struct{}

func (FS) ResolvePath(cwd, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel), nil
	}
	return filepath.Clean(filepath.Join(cwd, rel)), nil
}

func (FS) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (FS) WriteFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}

func (FS) AppendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(data)
	return err
}

func (FS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func toStat(fi os.FileInfo) capability.Stat {
	isSymlink := fi.Mode()&os.ModeSymlink != 0
	return capability.Stat{
		IsFile:      fi.Mode().IsRegular(),
		IsDirectory: fi.IsDir(),
		IsSymlink:   isSymlink,
		Mode:        int32(fi.Mode().Perm()),
		Size:        float64(fi.Size()),
		MtimeMS:     float64(fi.ModTime().UnixMilli()),
	}
}

func (FS) Stat(path string) (capability.Stat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return capability.Stat{}, err
	}
	return toStat(fi), nil
}

func (FS) Lstat(path string) (capability.Stat, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return capability.Stat{}, err
	}
	return toStat(fi), nil
}

func (FS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func (FS) Mkdir(path string, opts capability.MkdirOpts) error {
	if opts.Recursive {
		return os.MkdirAll(path, 0o755)
	}
	return os.Mkdir(path, 0o755)
}

func (FS) Rm(path string, opts capability.RmOpts) error {
	if opts.Recursive {
		return os.RemoveAll(path)
	}
	err := os.Remove(path)
	if err != nil && opts.Force && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (FS) Symlink(target, link string) error { return os.Symlink(target, link) }
func (FS) Readlink(link string) (string, error) { return os.Readlink(link) }
func (FS) Chmod(path string, mode int32) error  { return os.Chmod(path, os.FileMode(mode)) }

func (FS) Realpath(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

func (FS) Rename(oldPath, newPath string) error { return os.Rename(oldPath, newPath) }

func (FS) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// HTTPFetcher implements capability.Fetcher using net/http. cmd/vsh wires
// it into every session it creates; a vshell session with no Fetcher
// configured fails closed (spec's NETWORK_NOT_CONFIGURED error code).
type HTTPFetcher struct {
	Client *http.Client
}

func (h HTTPFetcher) Fetch(url string, opts capability.FetchOpts) (capability.FetchResult, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	method := opts.Method
	if method == "" {
		method = "GET"
	}
	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return capability.FetchResult{}, err
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return capability.FetchResult{}, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return capability.FetchResult{}, err
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return capability.FetchResult{
		Status: resp.StatusCode, StatusText: resp.Status,
		Headers: headers, Body: buf.String(), URL: url,
	}, nil
}

// SubExecutor implements capability.Executor by running commandLine
// through a caller-supplied shell runner function, so command
// substitution recurses into the same interpreter without this package
// importing shell/exec (which would be an import cycle: shell/exec is a
// consumer of capability, not the other way around).
type SubExecutor struct {
	Run func(commandLine, stdin string) (capability.ExecResult, error)
}

func (s SubExecutor) Exec(commandLine, stdin string) (capability.ExecResult, error) {
	if s.Run == nil {
		return capability.ExecResult{}, fmt.Errorf("osfs: no sub-executor configured")
	}
	return s.Run(commandLine, stdin)
}

// Clock is a thin wrapper kept here so cmd/ front ends can import one
// osfs package for every default capability rather than mixing
// capability.SystemClock in from a different package.
type Clock struct{}

func (Clock) NowMS() int64 { return time.Now().UnixMilli() }
