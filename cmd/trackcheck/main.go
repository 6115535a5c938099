// Package main is the trackcheck command: it validates newline-delimited JSON
// event logs against a tracking taxonomy, or serves the validation HTTP API.
//
//	trackcheck [-schema taxonomy.yaml] [-format text|json] [-ext .jsonl] [-order sorted|ingestion] <file-or-dir>
//	trackcheck -serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/correlator-io/trackcheck/internal/api"
	"github.com/correlator-io/trackcheck/internal/config"
	"github.com/correlator-io/trackcheck/internal/report"
	"github.com/correlator-io/trackcheck/internal/taxonomy"
	"github.com/correlator-io/trackcheck/internal/validation"
)

const (
	name = "trackcheck"

	exitValid   = 0
	exitInvalid = 1
	exitUsage   = 2

	formatText = "text"
	formatJSON = "json"
)

var errUnknownFormat = errors.New("unknown report format")

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code: 0 when every
// log is valid, 1 when any is invalid, 2 on usage or setup errors.
func run(args []string, stdout, stderr io.Writer) int {
	opts := validation.LoadOptions()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		schemaPath = fs.String("schema", config.GetEnvStr(taxonomy.SchemaPathEnvVar, taxonomy.DefaultSchemaPath),
			"taxonomy file (YAML or JSON)")
		format      = fs.String("format", formatText, "report format: text or json")
		serve       = fs.Bool("serve", false, "serve the validation HTTP API instead of validating a path")
		showVersion = fs.Bool("version", false, "print version and exit")
	)

	fs.StringVar(&opts.Extension, "ext", opts.Extension, "log file extension for directory runs")
	fs.Var((*orderFlag)(&opts.OrderCheck), "order", "timestamp order check: sorted or ingestion")
	fs.IntVar(&opts.Workers, "workers", opts.Workers, "files validated in parallel")
	fs.BoolVar(&opts.CheckCommonProperties, "common-properties", opts.CheckCommonProperties,
		"also type-check properties declared without an event")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "usage: %s [flags] <file-or-dir>\n       %s -serve\n\nflags:\n", name, name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitValid
		}

		return exitUsage
	}

	if *showVersion {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", name, api.Version)

		return exitValid
	}

	if *format != formatText && *format != formatJSON {
		_, _ = fmt.Fprintf(stderr, "%s: %v: %q\n", name, errUnknownFormat, *format)

		return exitUsage
	}

	if !*serve && fs.NArg() != 1 {
		fs.Usage()

		return exitUsage
	}

	// Reports go to stdout; in CLI mode logs go to stderr so they never mix.
	logger := config.NewLoggerTo(stderr)
	if *serve {
		logger = config.NewLogger()
	}

	if err := opts.Validate(); err != nil {
		logger.Error("Invalid options", slog.String("error", err.Error()))

		return exitUsage
	}

	schema, err := taxonomy.LoadFile(*schemaPath)
	if err != nil {
		logger.Error("Failed to load taxonomy", slog.String("path", *schemaPath), slog.String("error", err.Error()))

		return exitUsage
	}

	validator := validation.NewFileValidator(schema, opts, logger)

	if *serve {
		return runServer(validator, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return validatePath(ctx, validator, fs.Arg(0), *format, stdout, logger)
}

// validatePath validates a single log or every log in a directory and writes the report.
func validatePath(
	ctx context.Context,
	validator *validation.FileValidator,
	path, format string,
	stdout io.Writer,
	logger *slog.Logger,
) int {
	info, err := os.Stat(path)
	if err != nil {
		logger.Error("Cannot access log path", slog.String("path", path), slog.String("error", err.Error()))

		return exitUsage
	}

	if !info.IsDir() {
		result := validator.ValidateFile(path)

		if err := writeFileReport(stdout, result, format); err != nil {
			logger.Error("Failed to write report", slog.String("error", err.Error()))

			return exitUsage
		}

		return exitCode(result)
	}

	results, err := validator.ValidateDirectory(ctx, path)
	if err != nil {
		logger.Error("Directory validation failed", slog.String("path", path), slog.String("error", err.Error()))

		return exitUsage
	}

	if err := writeDirectoryReport(stdout, results, format); err != nil {
		logger.Error("Failed to write report", slog.String("error", err.Error()))

		return exitUsage
	}

	for _, result := range results {
		if !result.Valid {
			return exitInvalid
		}
	}

	return exitValid
}

func writeFileReport(w io.Writer, result *validation.Result, format string) error {
	if format == formatJSON {
		return report.WriteJSON(w, result)
	}

	return report.WriteText(w, result)
}

func writeDirectoryReport(w io.Writer, results map[string]*validation.Result, format string) error {
	if format == formatJSON {
		return report.WriteDirectoryJSON(w, results)
	}

	return report.WriteDirectoryText(w, results)
}

func exitCode(result *validation.Result) int {
	if result.Valid {
		return exitValid
	}

	return exitInvalid
}

// orderFlag parses -order case-insensitively into a validation.OrderCheck.
type orderFlag validation.OrderCheck

func (o *orderFlag) String() string {
	return string(*o)
}

func (o *orderFlag) Set(value string) error {
	order, err := validation.ParseOrderCheck(value)
	if err != nil {
		return err
	}

	*o = orderFlag(order)

	return nil
}
