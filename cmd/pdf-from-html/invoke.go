package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	flag "github.com/spf13/pflag"

	"pdf-from-html/internal/config"
	"pdf-from-html/internal/http/handlers"
	"pdf-from-html/internal/infra/logging"
)

type invokeFlags struct {
	event      string
	configPath string
	logLevel   string
}

func parseInvokeFlags(args []string, stderr io.Writer) (invokeFlags, error) {
	var f invokeFlags
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.event, "event", "e", "-", "event JSON file, or - for stdin")
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level override")
	if err := fs.Parse(args); err != nil {
		return invokeFlags{}, err
	}
	if fs.NArg() > 0 {
		return invokeFlags{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// runInvoke handles one event and prints the response JSON. It returns the
// process exit code.
func runInvoke(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, err := parseInvokeFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	path := f.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Parse(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	level := cfg.Logger.Level
	if f.logLevel != "" {
		level = f.logLevel
	}
	logging.UseWriter(stderr, level)
	setMaxProcs()

	svc, err := newService(cfg)
	if err != nil {
		logging.Error("Failed to build conversion service", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := invoke(ctx, svc, f.event, stdin, stdout); err != nil {
		logging.Error("Invocation failed", "error", err)
		return 1
	}
	return 0
}

// invoke reads one event from file (or stdin for "-"), converts it and
// writes the response JSON to out.
func invoke(ctx context.Context, conv handlers.Converter, file string, stdin io.Reader, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read event: %w", err)
	}

	req, err := handlers.DecodeRequest(data)
	if err != nil {
		return err
	}
	resp, err := conv.Convert(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	return enc.Encode(resp)
}
