package common

import (
	"io"
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[fitdec] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

// SetOutput redirects the package logger, used by the daemon to route
// through its rotating log file.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}
