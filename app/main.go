package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/cookiestash/app/api"
	"github.com/umputun/cookiestash/app/config"
	"github.com/umputun/cookiestash/app/store"
	"github.com/umputun/cookiestash/lib/cookiestash"
)

type credentials struct {
	Username string `short:"u" long:"username" env:"COOKIESTASH_USERNAME" required:"true" description:"user name"`
	Password string `short:"p" long:"password" env:"COOKIESTASH_PASSWORD" required:"true" description:"password"`
}

type options struct {
	Config    string        `short:"c" long:"config" env:"COOKIESTASH_CONFIG" description:"config file, yaml or toml"`
	BaseURL   string        `long:"base-url" env:"COOKIESTASH_BASE_URL" description:"API base URL"`
	Store     string        `short:"s" long:"store" env:"COOKIESTASH_STORE" description:"cookie store: sqlite file, postgres://, redis://, bolt://path, keyring://service or mem://"`
	SecretKey string        `long:"secret-key" env:"COOKIESTASH_SECRET_KEY" description:"encrypt saved cookies with this key, min 16 bytes"`
	CacheTTL  time.Duration `long:"cache-ttl" env:"COOKIESTASH_CACHE_TTL" description:"keep saved cookies in memory for this long"`
	Dbg       bool          `long:"dbg" env:"DEBUG" description:"debug mode"`

	Login    credentials `command:"login" description:"sign in and save session cookies"`
	Register credentials `command:"register" description:"create account and save session cookies"`
	Get      struct {
		Args struct {
			Path string `positional-arg-name:"PATH" description:"API path relative to base URL"`
		} `positional-args:"yes" required:"yes"`
	} `command:"get" description:"call API path with saved cookies and print response data"`
	Cookies struct{} `command:"cookies" description:"list saved cookies"`
}

var revision = "unknown"

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	setupLog(opts.Dbg, opts.Login.Password, opts.Register.Password, opts.SecretKey)
	log.Printf("[DEBUG] cookiestash %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := run(ctx, opts, p.Active.Name, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run executes the command with the shared client built from options.
func run(ctx context.Context, opts options, command string, out io.Writer) error {
	cfg, err := makeConfig(opts)
	if err != nil {
		return err
	}

	backend, err := makeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	factoryOpts := []cookiestash.Option{cookiestash.WithLogger(log.Default())}
	if cfg.UserAgent != "" {
		factoryOpts = append(factoryOpts, cookiestash.WithHeader("User-Agent", cfg.UserAgent))
	}
	factory, err := cookiestash.NewFactory(cfg.Client(), backend, factoryOpts...)
	if err != nil {
		return fmt.Errorf("failed to make client: %w", err)
	}
	svc := api.New(factory.Client())

	switch command {
	case "login":
		user, err := svc.Login(ctx, opts.Login.Username, opts.Login.Password)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "logged in as %s (id %d)\n", user.Username, user.ID)
		return err
	case "register":
		creds := opts.Register
		user, err := svc.Register(ctx, creds.Username, creds.Password, creds.Password)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "registered %s (id %d)\n", user.Username, user.ID)
		return err
	case "get":
		var data json.RawMessage
		if err := svc.GetJSON(ctx, opts.Get.Args.Path, &data); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	case "cookies":
		return listCookies(ctx, backend, out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// makeConfig merges defaults, the config file and command line options, in this order.
func makeConfig(opts options) (config.Config, error) {
	cfg := config.Defaults()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return config.Config{}, err
		}
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.SecretKey != "" {
		cfg.SecretKey = opts.SecretKey
	}
	if opts.CacheTTL > 0 {
		cfg.CacheTTL = opts.CacheTTL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// makeStore opens the backend and wraps it with encryption and cache if configured.
func makeStore(ctx context.Context, cfg config.Config) (store.Backend, error) {
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.Store, err)
	}

	if cfg.SecretKey != "" {
		enc, err := store.NewEncrypted(backend, []byte(cfg.SecretKey))
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to enable encryption: %w", err)
		}
		backend = enc
	}

	if cfg.CacheTTL > 0 {
		cached, err := store.NewCached(backend, cfg.CacheTTL)
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to enable cache: %w", err)
		}
		backend = cached
	}
	return backend, nil
}

func listCookies(ctx context.Context, backend store.Backend, out io.Writer) error {
	l, ok := backend.(store.Lister)
	if !ok {
		return errors.New("store doesn't support listing")
	}
	entries, err := l.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cookies: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", e.UpdatedAt.Format(time.RFC3339), e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

func setupLog(dbg bool, secrets ...string) {
	logOpts := []log.Option{log.Msec, log.LevelBraces}
	if dbg {
		logOpts = []log.Option{log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces}
	}

	var nonEmpty []string
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, log.Secret(nonEmpty...))
	}
	log.SetupStdLogger(logOpts...)
	log.Setup(logOpts...)
}
