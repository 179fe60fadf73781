package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stellarlinkco/persona-ssr/api"
	"github.com/stellarlinkco/persona-ssr/internal/config"
	"github.com/stellarlinkco/persona-ssr/internal/oracle"
	"github.com/stellarlinkco/persona-ssr/internal/queue"
	"github.com/stellarlinkco/persona-ssr/internal/store"
)

// closeCountingStore wraps a real store to observe Close.
type closeCountingStore struct {
	store.Store
	closeCalled int
}

func (s *closeCountingStore) Close() error {
	s.closeCalled++
	return s.Store.Close()
}

func newMemoryStore(t *testing.T) *closeCountingStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return &closeCountingStore{Store: st}
}

func saveServerGlobals(t *testing.T) func() {
	t.Helper()

	oldOsExit := osExit
	oldStderrWriter := stderrWriter
	oldLoadConfig := loadConfig
	oldOpenStore := openStore
	oldOracleFromConfig := oracleFromConfig
	oldNewQueue := newQueue
	oldNewServer := newServer
	oldRunServer := runServer

	return func() {
		osExit = oldOsExit
		stderrWriter = oldStderrWriter
		loadConfig = oldLoadConfig
		openStore = oldOpenStore
		oracleFromConfig = oldOracleFromConfig
		newQueue = oldNewQueue
		newServer = oldNewServer
		runServer = oldRunServer
	}
}

func TestRunMain_Success(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	cfg := config.Default()
	cfg.Storage.Type = "memory"
	var gotConfigPath string
	loadConfig = func(path string) (*config.Config, error) {
		gotConfigPath = path
		return cfg, nil
	}

	st := newMemoryStore(t)
	openStore = func(c *config.Config) (store.Store, error) {
		if c != cfg {
			t.Fatalf("openStore: cfg mismatch")
		}
		return st, nil
	}

	var gotAddr string
	runCalled := 0
	runServer = func(srv *api.Server, addr string) error {
		if srv == nil {
			t.Fatalf("runServer: nil server")
		}
		runCalled++
		gotAddr = addr
		return nil
	}

	newServer = func(c *config.Config, gotStore store.Store, q *queue.Queue) (*api.Server, error) {
		if c != cfg {
			t.Fatalf("newServer: cfg mismatch")
		}
		if gotStore != store.Store(st) {
			t.Fatalf("newServer: store mismatch")
		}
		if q == nil {
			t.Fatalf("newServer: nil queue")
		}
		return &api.Server{}, nil
	}

	code := runMain([]string{"-addr", "127.0.0.1:9999", "-config", "cfg.yaml"})
	if code != 0 {
		t.Fatalf("exit: got %d want %d; stderr=%q", code, 0, stderrBuf.String())
	}
	if gotConfigPath != "cfg.yaml" {
		t.Fatalf("configPath: got %q want %q", gotConfigPath, "cfg.yaml")
	}
	if runCalled != 1 || gotAddr != "127.0.0.1:9999" {
		t.Fatalf("Run: called=%d addr=%q", runCalled, gotAddr)
	}
	if st.closeCalled != 1 {
		t.Fatalf("store Close: called=%d", st.closeCalled)
	}
	if stderrBuf.Len() != 0 {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_DefaultFlags(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	cfg := config.Default()
	cfg.Storage.Type = "memory"
	var gotConfigPath string
	loadConfig = func(path string) (*config.Config, error) {
		gotConfigPath = path
		return cfg, nil
	}
	openStore = func(*config.Config) (store.Store, error) { return newMemoryStore(t), nil }

	var gotAddr string
	runServer = func(_ *api.Server, addr string) error {
		gotAddr = addr
		return nil
	}
	newServer = func(*config.Config, store.Store, *queue.Queue) (*api.Server, error) {
		return &api.Server{}, nil
	}

	if code := runMain(nil); code != 0 {
		t.Fatalf("exit: got %d want %d", code, 0)
	}
	if gotConfigPath != config.DefaultPath {
		t.Fatalf("configPath: got %q want %q", gotConfigPath, config.DefaultPath)
	}
	if gotAddr != ":8080" {
		t.Fatalf("addr: got %q want %q", gotAddr, ":8080")
	}
}

func TestRunMain_FlagParseError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadCalled := 0
	loadConfig = func(string) (*config.Config, error) {
		loadCalled++
		return config.Default(), nil
	}

	if code := runMain([]string{"-nope"}); code != 2 {
		t.Fatalf("exit: got %d want %d", code, 2)
	}
	if loadCalled != 0 {
		t.Fatalf("Load: called=%d want %d", loadCalled, 0)
	}
	if stderrBuf.Len() == 0 {
		t.Fatalf("expected parse error output")
	}
}

func TestRunMain_HelpFlag(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrWriter = &bytes.Buffer{}

	loadCalled := 0
	loadConfig = func(string) (*config.Config, error) {
		loadCalled++
		return config.Default(), nil
	}

	if code := runMain([]string{"-h"}); code != 0 {
		t.Fatalf("exit: got %d want %d", code, 0)
	}
	if loadCalled != 0 {
		t.Fatalf("Load: called=%d want %d", loadCalled, 0)
	}
}

func TestRunMain_ConfigLoadError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) {
		return nil, errors.New("boom")
	}
	openStore = func(*config.Config) (store.Store, error) {
		t.Fatalf("Open called unexpectedly")
		return nil, nil
	}

	if code := runMain([]string{"-config", "x.yaml"}); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "boom") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_StoreOpenError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }
	openStore = func(*config.Config) (store.Store, error) {
		return nil, errors.New("storefail")
	}

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "storefail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_OracleError_ClosesStore(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	cfg := config.Default()
	cfg.Oracle.Backend = "wat"
	loadConfig = func(string) (*config.Config, error) { return cfg, nil }

	st := newMemoryStore(t)
	openStore = func(*config.Config) (store.Store, error) { return st, nil }

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if st.closeCalled != 1 {
		t.Fatalf("store Close: called=%d", st.closeCalled)
	}
	if !strings.Contains(stderrBuf.String(), "unsupported backend") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_NewServerError_ClosesStore(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }

	st := newMemoryStore(t)
	openStore = func(*config.Config) (store.Store, error) { return st, nil }
	newServer = func(*config.Config, store.Store, *queue.Queue) (*api.Server, error) {
		return nil, errors.New("srvfail")
	}

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if st.closeCalled != 1 {
		t.Fatalf("store Close: called=%d", st.closeCalled)
	}
	if !strings.Contains(stderrBuf.String(), "srvfail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_RunError_ClosesStore(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }

	st := newMemoryStore(t)
	openStore = func(*config.Config) (store.Store, error) { return st, nil }
	runServer = func(*api.Server, string) error { return errors.New("runfail") }
	newServer = func(*config.Config, store.Store, *queue.Queue) (*api.Server, error) {
		return &api.Server{}, nil
	}

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if st.closeCalled != 1 {
		t.Fatalf("store Close: called=%d", st.closeCalled)
	}
	if !strings.Contains(stderrBuf.String(), "runfail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_RecoversPendingTasks(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }

	st := newMemoryStore(t)
	openStore = func(*config.Config) (store.Store, error) { return st, nil }

	var gotQueue *queue.Queue
	newQueue = func(s store.Store, o oracle.Oracle, c *config.Config, opts ...queue.Option) (*queue.Queue, error) {
		q, err := queue.New(s, o, c, opts...)
		gotQueue = q
		return q, err
	}
	newServer = func(*config.Config, store.Store, *queue.Queue) (*api.Server, error) {
		return &api.Server{}, nil
	}
	runServer = func(*api.Server, string) error { return nil }

	if code := runMain(nil); code != 0 {
		t.Fatalf("exit: got %d want %d; stderr=%q", code, 0, stderrBuf.String())
	}
	if gotQueue == nil {
		t.Fatalf("queue never constructed")
	}
}

func TestMain_ExitCodePropagates(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrWriter = &bytes.Buffer{}

	loadConfig = func(string) (*config.Config, error) { return config.Default(), nil }
	openStore = func(*config.Config) (store.Store, error) { return newMemoryStore(t), nil }
	newServer = func(*config.Config, store.Store, *queue.Queue) (*api.Server, error) {
		return &api.Server{}, nil
	}
	runServer = func(*api.Server, string) error { return nil }

	oldArgs := append([]string(nil), os.Args...)
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"server", "-addr", "127.0.0.1:9999"}

	exitCode := -1
	osExit = func(code int) { exitCode = code }

	main()

	if exitCode != 0 {
		t.Fatalf("exit: got %d want %d", exitCode, 0)
	}
}
