package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap/zapcore"

	"github.com/temirov/treedump/internal/cli"
	"github.com/temirov/treedump/internal/utils"
)

// main is the entry point for the treedump command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(zapcore.InfoLevel)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()

	// With SIGPIPE observed, writes to a closed stdout return EPIPE instead of
	// killing the process, so the exit can be clean.
	brokenPipeSignals := make(chan os.Signal, 1)
	signal.Notify(brokenPipeSignals, syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if applicationExecutionError := cli.Execute(ctx, loggerInstance); applicationExecutionError != nil {
		if utils.IsBrokenPipe(applicationExecutionError) {
			return
		}
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
