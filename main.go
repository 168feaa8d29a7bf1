package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

var version = "dev"

func newLogger() zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false, TimeFormat: time.RFC3339}
	consoleWriter.TimeFormat = "[" + time.RFC3339 + "]"
	consoleWriter.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}

	logger := zerolog.New(consoleWriter).
		With().Timestamp().Logger()

	level := zerolog.InfoLevel
	envLevel, ok := os.LookupEnv("LOG_LEVEL")
	if ok {
		parsed, err := zerolog.ParseLevel(envLevel)
		if err != nil {
			logger.Warn().Err(err).Msg("could not parse environment variable LOG_LEVEL")
			return logger
		}
		level = parsed
	}

	return logger.Level(level)
}

func main() {
	args := Command{}
	cli := kong.Parse(&args,
		kong.Name("pkgledger"),
		kong.Description("Package build ledger and upstream metadata reconciliation."),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignals(cancel)

	logger := newLogger()
	if args.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	var err error
	switch cli.Command() {
	case "version":
		fmt.Println(version)
	case "serve":
		err = serveCommand(ctx, args, logger)
	case "migrate":
		err = migrateCommand(ctx, args, logger)
	case "reconcile <repo>":
		err = reconcileCommand(ctx, args, logger)
	case "submit <repo> <name>":
		err = submitCommand(ctx, args, logger)
	case "token keygen":
		err = keygenCommand()
	case "token sign":
		err = signCommand(args, logger)
	default:
		panic(cli.Command())
	}
	if err != nil {
		logger.Error().Err(err).Str("command", cli.Command()).Msg("command failed")
		cli.Exit(1)
	}
}

func setupSignals(onSignal func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		onSignal()
	}()
}
