// Command mockapi serves the development login and permissions endpoints.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-auth-guard/config"
	"github.com/goliatone/go-auth-guard/mockapi"
	"github.com/goliatone/go-print"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mockapi: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("mockapi", flag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a TOML config file")
	addr := flags.StringP("addr", "a", "", "listen address, overrides mockapi.addr")
	fixtures := flags.StringP("fixtures", "f", "", "YAML user fixtures, overrides mockapi.fixtures")
	verbose := flags.BoolP("verbose", "v", false, "log debug messages")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flags.Changed("addr") {
		cfg.MockAPI.Addr = *addr
	}
	if flags.Changed("fixtures") {
		cfg.MockAPI.Fixtures = *fixtures
	}

	logger := &cliLogger{name: "mockapi", debug: *verbose}
	logger.Debug("config: %s", print.MaybePrettyJSON(cfg.MockAPI))

	users := mockapi.DefaultFixtures()
	if cfg.MockAPI.Fixtures != "" {
		if users, err = mockapi.LoadFixtures(cfg.MockAPI.Fixtures); err != nil {
			return err
		}
	}

	svc, err := mockapi.NewService(cfg.MockAPI.SigningKey, users,
		mockapi.WithLogger(logger),
		mockapi.WithTokenTTL(cfg.MockAPI.GetTokenTTL()),
		mockapi.WithLoginRate(cfg.MockAPI.LoginsPerMinute, cfg.MockAPI.LoginBurst),
	)
	if err != nil {
		return err
	}

	srv := mockapi.NewServer(svc)

	go func() {
		logger.Info("listening on %s%s", cfg.MockAPI.Addr, mockapi.Prefix)
		if err := srv.Serve(cfg.MockAPI.Addr); err != nil {
			logger.Error("server stopped: %v", err)
		}
	}()

	sig := WaitExitSignal()
	logger.Info("received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
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
