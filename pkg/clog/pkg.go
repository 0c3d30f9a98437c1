package clog

import (
	"io"
	"os"

	"github.com/apex/log"
)

var clogger = NewContextLogger(os.Stdout)

func AddLoggingContext(transferID string, w io.WriteCloser) {
	clogger.AddLoggingContext(transferID, w)
}

func RemoveLoggingContext(transferID string) {
	clogger.RemoveLoggingContext(transferID)
}

func HasLoggingContext(transferID string) bool {
	return clogger.HasLoggingContext(transferID)
}

func SetLevel(ctx string, level log.Level) error {
	return clogger.SetLevel(ctx, level)
}

func SetLevelFromString(ctx, s string) error {
	return clogger.SetLevelFromString(ctx, s)
}

func ForTransfer(transferID string) *log.Entry {
	return clogger.ForTransfer(transferID)
}

func Global() *log.Entry {
	return clogger.Global()
}

func SetGlobalOutput(w io.WriteCloser) {
	clogger.SetGlobalOutput(w)
}

func GlobalLevel() log.Level {
	return clogger.GlobalLevel()
}
