package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/migadu/popfetch/client/pop3"
	"github.com/migadu/popfetch/config"
	"github.com/migadu/popfetch/logger"
	"github.com/migadu/popfetch/message"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Infof("Received signal: %s, shutting down...", sig)
		cancel()
	}()

	command := os.Args[1]
	switch command {
	case "help", "--help", "-h":
		printUsage()
		return
	case "version", "--version", "-v":
		fmt.Printf("popfetch version %s (commit: %s, built at: %s)\n", version, commit, date)
		return
	}

	if err := run(ctx, command, os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "popfetch %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`popfetch - POP3 mailbox client

Usage:
  popfetch <command> [options] [message numbers]

Commands:
  check     Connect, log in and disconnect
  count     Print the number of messages in the mailbox
  list      Retrieve and decode a page of messages, newest last
  fetch     Retrieve and decode the given message numbers
  remove    Delete the given message numbers
  watch     Poll the mailbox size until interrupted
  version   Show version information
  help      Show this help message

Examples:
  popfetch count --host mail.example.com --user john
  popfetch list --start 0 --range 20 --ssl
  popfetch fetch --raw 3 4
  popfetch remove 1 2 3
  popfetch watch --metrics 127.0.0.1:9101

Options are read from popfetch.toml when present and overridden by flags.
The password may also be given in %s.
Use 'popfetch <command> --help' for the options of a command.
`, passwordEnv)
}

// run parses the command's flags, sets up logging and metrics, and
// executes it against a fresh client.
func run(ctx context.Context, command string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	common := addCommonFlags(fs)

	var (
		start, rng *int
		raw        *bool
		interval   *string
	)
	switch command {
	case "check", "count", "remove":
	case "list":
		start = fs.Int("start", -1, "Offset from the newest message (overrides config)")
		rng = fs.Int("range", 0, "Number of messages (overrides config)")
		raw = fs.Bool("raw", false, "Include the raw message text")
	case "fetch":
		raw = fs.Bool("raw", false, "Include the raw message text")
	case "watch":
		interval = fs.String("interval", "", "Poll interval (overrides config)")
	default:
		printUsage()
		return fmt.Errorf("unknown command")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "popfetch: warning initializing logger: %v\n", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	if cfg.Metrics.Enabled {
		stop := startMetricsServer(cfg.Metrics)
		defer stop()
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	client, err := pop3.New(opts)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	switch command {
	case "check":
		return runCheck(ctx, client, stdout)
	case "count":
		return runCount(ctx, client, stdout)
	case "list":
		if *start < 0 {
			*start = cfg.Fetch.Start
		}
		if *rng <= 0 {
			*rng = cfg.Fetch.Range
		}
		msgs, err := client.Messages(ctx, *start, *rng)
		return writePartial(stdout, msgs, *raw, err)
	case "fetch":
		ids, err := parseIDs(fs.Args())
		if err != nil {
			return err
		}
		msgs, err := client.FetchMessages(ctx, ids...)
		return writePartial(stdout, msgs, *raw, err)
	case "remove":
		ids, err := parseIDs(fs.Args())
		if err != nil {
			return err
		}
		return runRemove(ctx, client, ids, stdout)
	case "watch":
		if *interval != "" {
			cfg.Fetch.PollInterval = *interval
		}
		every, err := cfg.Fetch.GetPollInterval()
		if err != nil {
			return fmt.Errorf("poll interval: %w", err)
		}
		return runWatch(ctx, client, every)
	}
	return nil
}

func runCheck(ctx context.Context, client *pop3.Client, stdout io.Writer) error {
	if err := client.Login(ctx); err != nil {
		return err
	}
	client.Disconnect()
	fmt.Fprintf(stdout, "OK %s\n", client.Addr())
	return nil
}

func runCount(ctx context.Context, client *pop3.Client, stdout io.Writer) error {
	total, err := client.TotalCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, total)
	return nil
}

func runRemove(ctx context.Context, client *pop3.Client, ids []int, stdout io.Writer) error {
	results, err := client.Remove(ctx, ids...)
	if err != nil {
		return err
	}
	// Deletions are committed by QUIT.
	client.Disconnect()

	failed := 0
	for _, r := range results {
		status := "deleted"
		if !r.OK {
			status = "failed"
			failed++
		}
		fmt.Fprintf(stdout, "%d %s\n", r.Index, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(results))
	}
	return nil
}

// runWatch logs the mailbox size every interval, reconnecting each time so
// the server sees short sessions.
func runWatch(ctx context.Context, client *pop3.Client, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := -1
	for {
		total, err := client.TotalCount(ctx)
		client.Disconnect()
		switch {
		case err != nil:
			logger.Warn("Watch", "addr", client.Addr(), "error", err)
		case total != last:
			logger.Info("Watch", "addr", client.Addr(), "messages", total, "previous", last)
			last = total
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func parseIDs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("no message numbers given")
	}
	ids := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid message number %q", a)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// messageOutput is the JSON shape of one retrieved message.
type messageOutput struct {
	Index  int             `json:"index"`
	Error  string          `json:"error,omitempty"`
	Text   string          `json:"text,omitempty"`
	Record *message.Record `json:"message,omitempty"`
}

// writePartial writes whatever was retrieved before err and then returns
// err.
func writePartial(w io.Writer, msgs []pop3.Message, raw bool, err error) error {
	if len(msgs) > 0 || err == nil {
		if werr := writeMessages(w, msgs, raw); werr != nil && err == nil {
			return werr
		}
	}
	return err
}

func writeMessages(w io.Writer, msgs []pop3.Message, raw bool) error {
	out := make([]messageOutput, 0, len(msgs))
	for _, m := range msgs {
		o := messageOutput{Index: m.Index}
		if m.Err != nil {
			o.Error = m.Err.Error()
		} else if m.Record != nil {
			rec := *m.Record
			if !raw {
				rec.Raw = ""
			}
			o.Record = &rec
			o.Text = rec.PlainText()
		}
		out = append(out, o)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// startMetricsServer serves Prometheus metrics until the returned stop
// function is called.
func startMetricsServer(cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics", "addr", cfg.Addr, "path", cfg.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("Metrics", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Infof("Error shutting down metrics server: %v", err)
		}
	}
}
