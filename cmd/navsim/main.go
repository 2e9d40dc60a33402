// Command navsim boots a client session against a backend and evaluates
// navigations through the guard, printing each decision and the
// notifications the session produced.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/activitymap"
	"github.com/goliatone/go-auth-guard/backend"
	"github.com/goliatone/go-auth-guard/config"
	"github.com/goliatone/go-auth-guard/mockapi"
	"github.com/goliatone/go-auth-guard/notify"
	"github.com/goliatone/go-auth-guard/storage"
	"github.com/goliatone/go-auth-guard/storage/sqlstore"
	"github.com/goliatone/go-print"
	flag "github.com/spf13/pflag"
)

type apiBackend interface {
	auth.Backend
	auth.AuthorizationHeader
	SetUnauthorizedHandler(fn func(ctx context.Context))
}

type options struct {
	configPath string
	backendURL string
	mock       bool
	username   string
	password   string
	driver     string
	dsn        string
	restore    bool
	logout     bool
	activity   bool
	verbose    bool
	paths      []string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "navsim: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, *config.Settings, error) {
	opts := &options{}

	flags := flag.NewFlagSet("navsim", flag.ContinueOnError)
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	flags.StringVarP(&opts.backendURL, "backend", "b", "", "backend base url, overrides backend.base_url")
	flags.BoolVar(&opts.mock, "mock", false, "use the in-process mock API instead of HTTP")
	flags.StringVarP(&opts.username, "username", "u", "", "log in with this username before navigating")
	flags.StringVarP(&opts.password, "password", "p", "", "password for --username")
	flags.StringVar(&opts.driver, "storage", "", "token storage driver: memory or sqlite")
	flags.StringVar(&opts.dsn, "dsn", "", "sqlite DSN for the token storage")
	flags.BoolVar(&opts.restore, "restore", false, "simulate a reload: restore the session in a fresh store before navigating")
	flags.BoolVar(&opts.logout, "logout", false, "log out after the navigations")
	flags.BoolVar(&opts.activity, "activity", false, "print activity records as JSON lines on stderr")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: navsim [flags] [path ...]\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	if flags.Changed("backend") {
		cfg.Backend.BaseURL = opts.backendURL
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = opts.driver
	}
	if flags.Changed("dsn") {
		cfg.Storage.DSN = opts.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	opts.paths = flags.Args()
	if len(opts.paths) == 0 {
		for _, route := range auth.DefaultRoutes() {
			opts.paths = append(opts.paths, route.Path)
		}
	}

	return opts, cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	logger := &cliLogger{name: "navsim", debug: opts.verbose}
	logger.Debug("config: %s", print.MaybePrettyJSON(cfg))

	tokens, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	api, err := newBackend(cfg, opts.mock, logger)
	if err != nil {
		return err
	}

	center := notify.NewCenter()

	var sink auth.ActivitySink
	if opts.activity {
		sink = activitymap.NewWriterSink(os.Stderr)
	}

	newStore := func() *auth.Store {
		store := auth.NewStore(api, tokens,
			auth.WithStoreConfig(cfg),
			auth.WithStoreLogger(logger),
			auth.WithStoreNotifier(center),
			auth.WithStoreActivitySink(sink),
		)
		api.SetUnauthorizedHandler(store.HandleUnauthorized)
		return store
	}

	store := newStore()

	if opts.username != "" {
		user, err := store.Login(ctx, auth.Credentials{Username: opts.username, Password: opts.password})
		if err != nil {
			desc := backend.Report(center, err, "Login failed")
			logger.Warn("login failed: %s", desc.Message)
		} else {
			fmt.Fprintf(out, "logged in as %s (%s)\n", user.Username(), user.Role())
		}
	}

	if opts.restore {
		store = newStore()
		fmt.Fprintln(out, "session reset, restoring from storage on first navigation")
	}

	guard := auth.NewGuard(store,
		auth.WithGuardConfig(cfg),
		auth.WithGuardLogger(logger),
		auth.WithGuardNotifier(center),
		auth.WithGuardActivitySink(sink),
		auth.WithRoutes(auth.MustRouteTable(auth.DefaultRoutes()...)),
	)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tACTION\tREASON\tLOCATION")
	for _, path := range opts.paths {
		d := guard.Navigate(ctx, path)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", path, d.Action, orDash(string(d.Reason)), orDash(d.Location))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "session: %s\n", store.Snapshot())

	if opts.logout {
		store.Logout(ctx)
	}

	printNotifications(out, center.List())

	return nil
}

func openStorage(ctx context.Context, cfg *config.Settings) (auth.Storage, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		db, err := sqlstore.OpenSQLite(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}

func newBackend(cfg *config.Settings, mock bool, logger auth.Logger) (apiBackend, error) {
	if !mock {
		return backend.New(cfg.Backend.BaseURL, backend.WithLogger(logger))
	}

	users := mockapi.DefaultFixtures()
	if cfg.MockAPI.Fixtures != "" {
		var err error
		if users, err = mockapi.LoadFixtures(cfg.MockAPI.Fixtures); err != nil {
			return nil, err
		}
	}

	svc, err := mockapi.NewService(cfg.MockAPI.SigningKey, users,
		mockapi.WithLogger(logger),
		mockapi.WithTokenTTL(cfg.MockAPI.GetTokenTTL()),
		mockapi.WithLoginRate(cfg.MockAPI.LoginsPerMinute, cfg.MockAPI.LoginBurst),
	)
	if err != nil {
		return nil, err
	}
	return svc.Backend(), nil
}

func printNotifications(out io.Writer, list []notify.Notification) {
	if len(list) == 0 {
		fmt.Fprintln(out, "notifications: none")
		return
	}
	fmt.Fprintln(out, "notifications:")
	for _, n := range list {
		fmt.Fprintf(out, "  [%s] %s\n", strings.ToUpper(string(n.Severity)), n.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type cliLogger struct {
	name  string
	debug bool
}

func (l *cliLogger) log(level, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s [%s] %s: %s\n", time.Now().Format(time.TimeOnly), level, l.name, fmt.Sprintf(format, args...))
}

func (l *cliLogger) Debug(format string, args ...any) {
	if l.debug {
		l.log("DBG", format, args...)
	}
}

func (l *cliLogger) Info(format string, args ...any)  { l.log("INF", format, args...) }
func (l *cliLogger) Warn(format string, args ...any)  { l.log("WRN", format, args...) }
func (l *cliLogger) Error(format string, args ...any) { l.log("ERR", format, args...) }
