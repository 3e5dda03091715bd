// Command screener drives the remote screening API from a terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"FinScreen/internal/di"
	"FinScreen/internal/domain/models"
	"FinScreen/pkg/config"
)

const usage = `usage: screener [-config path] <command> [args]

commands:
  login -email E [-password P]      log in (password falls back to $FINSCREEN_PASSWORD)
  register -username U -email E [-password P]
  logout
  whoami
  indices                           list the index catalog
  config                            show the screener configuration
  set <field> <value>               set one configuration field (value is JSON or a bare string)
  import <file.csv>                 load symbols from a CSV with a Symbol column
  run [-filter BUY,SELL] [-sort key] [-desc] [-out file.csv]
  logs                              print backend logs
  clear-cache                       clear the backend cache
`

// loginHint tells the user to log in again once the session is gone.
type loginHint struct{ w io.Writer }

func (h loginHint) RedirectToLogin(_ context.Context, reason string) {
	fmt.Fprintf(h.w, "session ended (%s); run `screener login` to continue\n", reason)
}

// statusPrinter echoes status banners while a command runs.
type statusPrinter struct {
	w    io.Writer
	last string
}

func (p *statusPrinter) Notify(_ context.Context, ev models.Event) {
	snap, ok := ev.Payload.(models.RunSnapshot)
	if ev.Type != models.EventState || !ok || snap.Status == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s", snap.Status.Level, snap.Status.Message)
	if line != p.last {
		p.last = line
		fmt.Fprintln(p.w, line)
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	s, err := di.InitializeScreener(cfg, loginHint{w: os.Stderr}, &statusPrinter{w: os.Stderr})
	if err != nil {
		log.Fatalf("screener initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = dispatch(ctx, &cli{s: s, out: os.Stdout, errOut: os.Stderr}, flag.Arg(0), flag.Args()[1:])
	stop()
	if cerr := s.Close(); cerr != nil {
		log.Printf("close: %v", cerr)
	}

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		flag.Usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
