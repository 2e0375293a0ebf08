// Package app wires the control2310 process together: argument validation,
// configuration, listener, mapper announcement and the serving loop.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/control2310/internal/logger"
	"github.com/marmos91/control2310/pkg/adapter/control"
	"github.com/marmos91/control2310/pkg/config"
	"github.com/marmos91/control2310/pkg/discovery"
	"github.com/marmos91/control2310/pkg/mode"
	"github.com/marmos91/control2310/pkg/registry"
	"github.com/marmos91/control2310/pkg/server"
	"github.com/spf13/pflag"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitInvalidChar = 2
	ExitInvalidPort = 3
	ExitMapper      = 4
	ExitConfig      = 5
	ExitListen      = 6
	ExitServe       = 7
)

// exitMessages is the single stderr line printed for each failing exit code.
var exitMessages = map[int]string{
	ExitUsage:       "Usage: control2310 id info [mapper]",
	ExitInvalidChar: "Invalid char in parameter",
	ExitInvalidPort: "Invalid port",
	ExitMapper:      "Can not connect to map",
	ExitConfig:      "Invalid configuration",
	ExitListen:      "Can not listen",
	ExitServe:       "Server error",
}

// Run executes the process and returns its exit code. args excludes the
// program name. The bound port is written to stdout exactly once, before
// serving starts. A failed startup writes exactly one line to stderr; log
// records produced before the port line are held back until then.
//
// Startup order:
//  1. Mode signal watcher, installed before anything can fail
//  2. Flags and positional arguments
//  3. Configuration and logger
//  4. Registry and adapter
//  5. Listen on the control port
//  6. Announce to the mapper, if a mapper port was given
//  7. Print the port and serve until ctx is cancelled
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var held bytes.Buffer
	logger.SetOutput(&held)

	// The handler outlives ctx so a SIGHUP during the drain is still caught.
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()
	sig := mode.New()
	flipped := sig.Notify(notifyCtx)

	var logFile io.Writer
	fail := func(code int, detail error) int {
		// Only a log file gets the held records; stderr keeps its single line.
		if logFile != nil {
			logger.SetOutput(logFile)
			_, _ = logFile.Write(held.Bytes())
		}
		if detail != nil {
			fmt.Fprintf(stderr, "%s: %s\n", exitMessages[code], oneLine(detail))
		} else {
			fmt.Fprintln(stderr, exitMessages[code])
		}
		return code
	}

	flags := pflag.NewFlagSet("control2310", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	configPath := flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/control2310/config.yaml)")
	logLevel := flags.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	initConfig := flags.Bool("init-config", false, "Write a sample config file and exit")
	force := flags.Bool("force", false, "Overwrite an existing config file with --init-config")

	flagArgs, positional := splitArgs(flags, args)
	if err := flags.Parse(flagArgs); err != nil {
		return fail(ExitUsage, nil)
	}

	if *initConfig {
		return runInitConfig(*configPath, *force, stdout, stderr)
	}

	parsed, err := config.ParseArgs(positional)
	if err != nil {
		return fail(argsExitCode(err), nil)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(ExitConfig, err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
		if err := config.Validate(cfg); err != nil {
			return fail(ExitConfig, err)
		}
	}

	sink, err := configureLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return fail(ExitConfig, err)
	}
	switch strings.ToLower(cfg.Logging.Output) {
	case "", "stderr", "stdout":
	default:
		logFile = sink
	}

	logger.Debug("Starting control2310 as %s (%s)", parsed.ID, parsed.Info)
	if *configPath == "" && !config.ConfigExists() {
		logger.Debug("No config file at %s, using defaults and environment", config.GetDefaultConfigPath())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := registry.New(cfg.Registry)
	metricsResult := config.InitializeMetrics(cfg)

	go func() {
		select {
		case <-flipped:
			metricsResult.ControlMetrics.RecordModeFlipped()
		case <-ctx.Done():
		}
	}()

	ctrl := control.New(cfg.Adapters.Control, metricsResult.ControlMetrics)
	srv := server.New(reg, sig)
	srv.SetStopTimeout(cfg.Server.ShutdownTimeout)
	if err := srv.AddAdapter(ctrl); err != nil {
		logger.Error("Failed to register control adapter: %v", err)
		return fail(ExitConfig, nil)
	}

	port, err := ctrl.Listen()
	if err != nil {
		logger.Error("%v", err)
		return fail(ExitListen, nil)
	}

	if parsed.HasMapper() {
		registrar := discovery.NewRegistrar(cfg.Discovery)
		if err := registrar.Announce(ctx, parsed.MapperPort, parsed.ID, port); err != nil {
			logger.Error("Mapper announcement failed: %v", err)
			_ = ctrl.Stop(context.Background())
			return fail(ExitMapper, nil)
		}
	}

	fmt.Fprintf(stdout, "%d\n", port)

	logger.SetOutput(sink)
	_, _ = sink.Write(held.Bytes())
	held.Reset()

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error: %v", err)
		return fail(ExitServe, nil)
	}
	return ExitOK
}

// splitArgs separates the leading long flags from the positional arguments.
// Scanning stops at "--" or at the first argument that is not a long flag,
// so an identifier such as "-abc" reaches ParseArgs untouched. Unknown long
// flags stay on the flag side and fail to parse.
func splitArgs(flags *pflag.FlagSet, args []string) (flagArgs, positional []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args[:i], args[i+1:]
		}
		if !strings.HasPrefix(arg, "--") {
			return args[:i], args[i:]
		}

		name, _, hasValue := strings.Cut(arg[2:], "=")
		if f := flags.Lookup(name); f != nil && !hasValue && f.NoOptDefVal == "" {
			i++ // value in the next argument
		}
	}
	return args, nil
}

// oneLine flattens a multi-line error so it fits the single stderr line.
func oneLine(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}

// argsExitCode maps ParseArgs errors to exit codes.
func argsExitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidChar):
		return ExitInvalidChar
	case errors.Is(err, config.ErrInvalidPort):
		return ExitInvalidPort
	default:
		return ExitUsage
	}
}

// configureLogger applies the logging level and format and returns the
// configured sink. "stdout" and "stderr" map to the writers given to Run.
// The sink is not installed; Run does that once the port has been printed.
func configureLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (io.Writer, error) {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)

	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return stderr, nil
	case "stdout":
		return stdout, nil
	}
	return logger.OpenOutput(cfg.Output)
}

func runInitConfig(path string, force bool, stdout, stderr io.Writer) int {
	var err error
	if path == "" {
		path, err = config.InitConfig(force)
	} else {
		err = config.InitConfigToPath(path, force)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", exitMessages[ExitConfig], oneLine(err))
		return ExitConfig
	}

	fmt.Fprintf(stdout, "Configuration written to %s\n", path)
	return ExitOK
}
