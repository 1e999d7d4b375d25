package main

import (
	"bytes"
	"context"
	"io"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/cookiestash/app/config"
	"github.com/umputun/cookiestash/app/store"
)

func TestRun_LoginPersistsAcrossRuns(t *testing.T) {
	srv := newFakeServer(t)
	dbFile := filepath.Join(t.TempDir(), "cookies.db")
	ctx := context.Background()

	opts := options{BaseURL: srv.URL, Store: dbFile}
	opts.Login.Username = "alice"
	opts.Login.Password = "pass123"

	var out bytes.Buffer
	require.NoError(t, run(ctx, opts, "login", &out))
	assert.Equal(t, "logged in as alice (id 42)\n", out.String())

	// second run opens the same store with a fresh client
	out.Reset()
	opts.Get.Args.Path = "lg/coin/userinfo/json"
	require.NoError(t, run(ctx, opts, "get", &out))
	assert.Contains(t, out.String(), `"coinCount":100`)
	assert.Contains(t, out.String(), `"username":"alice"`)

	out.Reset()
	require.NoError(t, run(ctx, opts, "cookies", &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, out.String(), "\t127.0.0.1\tloginUserName=alice; Path=/;token_pass=t0k3n\n")
	assert.Contains(t, out.String(), "\t"+srv.URL+"/user/login\t")
}

func TestRun_GetWithoutLogin(t *testing.T) {
	srv := newFakeServer(t)
	opts := options{BaseURL: srv.URL, Store: "mem://"}
	opts.Get.Args.Path = "lg/coin/userinfo/json"

	var out bytes.Buffer
	err := run(context.Background(), opts, "get", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login required")
	assert.Empty(t, out.String())
}

func TestRun_Register(t *testing.T) {
	srv := newFakeServer(t)
	opts := options{BaseURL: srv.URL, Store: "mem://"}
	opts.Register.Username = "bob"
	opts.Register.Password = "secret1"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, "register", &out))
	assert.Equal(t, "registered bob (id 43)\n", out.String())
}

func TestRun_EncryptedAndCachedStore(t *testing.T) {
	srv := newFakeServer(t)
	dbFile := filepath.Join(t.TempDir(), "cookies.db")
	ctx := context.Background()

	opts := options{BaseURL: srv.URL, Store: dbFile, SecretKey: "0123456789abcdef", CacheTTL: time.Minute}
	opts.Login.Username = "alice"
	opts.Login.Password = "pass123"
	require.NoError(t, run(ctx, opts, "login", &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, run(ctx, opts, "cookies", &out))
	assert.Contains(t, out.String(), "loginUserName=alice; Path=/;token_pass=t0k3n")

	t.Run("plain store sees only ciphertext", func(t *testing.T) {
		plain := opts
		plain.SecretKey = ""
		plain.CacheTTL = 0
		var out bytes.Buffer
		require.NoError(t, run(ctx, plain, "cookies", &out))
		assert.NotContains(t, out.String(), "token_pass")
	})

	t.Run("wrong key fails to decrypt", func(t *testing.T) {
		wrong := opts
		wrong.SecretKey = "fedcba9876543210"
		wrong.Get.Args.Path = "lg/coin/userinfo/json"
		err := run(ctx, wrong, "get", &bytes.Buffer{})
		require.Error(t, err, "no cookie is sent, server rejects the call")
	})
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		command string
		errMsg  string
	}{
		{name: "bad base url", opts: options{BaseURL: "::bad", Store: "mem://"}, command: "get", errMsg: "failed to make client"},
		{name: "short secret", opts: options{BaseURL: "http://localhost", Store: "mem://", SecretKey: "short"}, command: "cookies",
			errMsg: "invalid config: secret_key must be at least 16 bytes"},
		{name: "missing config", opts: options{Config: "/no/such/file.yml", Store: "mem://"}, command: "cookies", errMsg: "file.yml"},
		{name: "unknown command", opts: options{BaseURL: "http://localhost", Store: "mem://"}, command: "blah", errMsg: `unknown command "blah"`},
		{name: "empty bolt path", opts: options{BaseURL: "http://localhost", Store: "bolt://"}, command: "cookies", errMsg: "failed to open store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.opts, tt.command, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMakeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("plain", func(t *testing.T) {
		backend, err := makeStore(ctx, config.Config{Store: "mem://"})
		require.NoError(t, err)
		defer backend.Close()
		assert.IsType(t, &store.Memory{}, backend)
	})

	t.Run("encrypted and cached", func(t *testing.T) {
		backend, err := makeStore(ctx, config.Config{Store: "mem://", SecretKey: "0123456789abcdef", CacheTTL: time.Minute})
		require.NoError(t, err)
		defer backend.Close()
		assert.IsType(t, &store.Cached{}, backend)
	})

	t.Run("encryption error", func(t *testing.T) {
		_, err := makeStore(ctx, config.Config{Store: "mem://", SecretKey: "short"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to enable encryption")
	})

	t.Run("open error", func(t *testing.T) {
		_, err := makeStore(ctx, config.Config{Store: "bolt://"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open store bolt://")
	})
}

func TestMakeConfig(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "cfg.yml")
	err := os.WriteFile(cfgFile, []byte("base_url: http://example.com/api\nstore: mem://\ncache_ttl: 5s\n"), 0o600)
	require.NoError(t, err)

	t.Run("file values", func(t *testing.T) {
		cfg, err := makeConfig(options{Config: cfgFile})
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/api", cfg.BaseURL)
		assert.Equal(t, "mem://", cfg.Store)
		assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	})

	t.Run("options override file", func(t *testing.T) {
		cfg, err := makeConfig(options{Config: cfgFile, BaseURL: "http://other.com", CacheTTL: time.Minute})
		require.NoError(t, err)
		assert.Equal(t, "http://other.com", cfg.BaseURL)
		assert.Equal(t, "mem://", cfg.Store)
		assert.Equal(t, time.Minute, cfg.CacheTTL)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := makeConfig(options{})
		require.NoError(t, err)
		assert.Equal(t, "https://www.wanandroid.com/", cfg.BaseURL)
		assert.Equal(t, "cookiestash.db", cfg.Store)
	})
}

func TestSetupLog(t *testing.T) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = origStdout
		log.Setup()
		stdlog.SetOutput(os.Stderr)
		stdlog.SetFlags(stdlog.LstdFlags)
	})

	setupLog(false, "", "s3cret-pass")
	log.Printf("[INFO] login with s3cret-pass")
	log.Printf("[DEBUG] skipped in normal mode")

	setupLog(true, "s3cret-pass")
	log.Printf("[DEBUG] debug with s3cret-pass")
	stdlog.Printf("[INFO] std logger with s3cret-pass")

	require.NoError(t, w.Close())
	os.Stdout = origStdout
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "s3cret-pass")
	assert.Contains(t, string(out), "login with ******")
	assert.NotContains(t, string(out), "skipped in normal mode")
	assert.Contains(t, string(out), "debug with ******")
	assert.Contains(t, string(out), "std logger with ******")
}

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := routegroup.New(http.NewServeMux())

	router.HandleFunc("POST /user/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "loginUserName="+r.FormValue("username")+"; Path=/")
		w.Header().Add("Set-Cookie", "token_pass=t0k3n; Path=/")
		rest.RenderJSON(w, rest.JSON{"errorCode": 0, "data": rest.JSON{"id": 42, "username": r.FormValue("username")}})
	})
	router.HandleFunc("POST /user/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "loginUserName="+r.FormValue("username")+"; Path=/")
		w.Header().Add("Set-Cookie", "token_pass=t0k3n; Path=/")
		rest.RenderJSON(w, rest.JSON{"errorCode": 0, "data": rest.JSON{"id": 43, "username": r.FormValue("username")}})
	})
	router.HandleFunc("GET /lg/coin/userinfo/json", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("token_pass"); err != nil || c.Value != "t0k3n" {
			rest.RenderJSON(w, rest.JSON{"errorCode": -1001, "errorMsg": "login required"})
			return
		}
		name := ""
		if c, err := r.Cookie("loginUserName"); err == nil {
			name = c.Value
		}
		rest.RenderJSON(w, rest.JSON{"errorCode": 0, "data": rest.JSON{"coinCount": 100, "username": name}})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}
