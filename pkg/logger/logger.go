package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before Init is called
// (logrus defaults), so packages may log from tests without setup.
var Log = logrus.New()

// Init configures the global logger from the environment.
// Call it once from main.
func Init() {
	InitWithOutput(os.Stdout)
}

// InitWithOutput configures the global logger and points it at out.
func InitWithOutput(out io.Writer) {
	Log = logrus.New()

	// LOG_LEVEL defaults to info; "debug" shows every poll tick.
	logLevel, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		logLevel = "info"
	}
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	// "json" for log collection, text for local runs.
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	if logFormat == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	Log.SetOutput(out)
}
