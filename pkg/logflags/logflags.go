package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var tracer = false
var breakpoints = false

var logOut io.WriteCloser

// Logger is the leveled logging surface the control core writes to. It is
// the subset of logrus that the ptrace and breakpoint layers actually
// call; *logrus.Entry satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LoggerFactory is used to create the Logger of each layer.
// SetLoggerFactory can be used to configure it; the default builds a
// logrus logger using textFormatter.
type LoggerFactory func(layer string, enabled bool, out io.Writer) Logger

var loggerFactory LoggerFactory

// SetLoggerFactory routes every Logger created by this package through lf.
func SetLoggerFactory(lf LoggerFactory) {
	loggerFactory = lf
}

// makeLogger builds the logger of one layer. Disabled layers still log
// errors: the installation helpers that run inside must-continue loops
// report their failures through these loggers.
func makeLogger(layer string, enabled bool) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(layer, enabled, logOut)
	}
	logger := logrus.New()
	logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Out = logOut
	} else {
		logger.Out = os.Stderr
	}
	logger.Level = logrus.ErrorLevel
	if enabled {
		logger.Level = logrus.DebugLevel
	}
	return logger.WithField("layer", layer)
}

// Tracer returns true if the ptrace control layer should log.
func Tracer() bool {
	return tracer
}

// TracerLogger returns a logger for the ptrace control layer.
func TracerLogger() Logger {
	return makeLogger("tracer", tracer)
}

// Breakpoints returns true if breakpoint bookkeeping should be logged.
func Breakpoints() bool {
	return breakpoints
}

// BreakpointsLogger returns a logger for breakpoint bookkeeping.
func BreakpointsLogger() Logger {
	return makeLogger("breakpoints", breakpoints)
}

var errLogstrWithoutLog = errors.New("log output specified without logging enabled")

// Setup sets the logging flags based on the contents of logstr. If logDest
// is not empty logs are redirected to the file it names.
func Setup(logFlag bool, logstr string, logDest string) error {
	if logDest != "" {
		f, err := os.Create(logDest)
		if err != nil {
			return err
		}
		logOut = f
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "tracer"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "tracer":
			tracer = true
		case "breakpoints":
			breakpoints = true
		}
	}
	return nil
}

// Close closes the file logs were redirected to, if any.
func Close() {
	if logOut != nil {
		logOut.Close()
		logOut = nil
	}
}

// textFormatter is a simplified version of the logrus TextFormatter: it
// always prints the timestamp in full and never quotes or escapes the
// message, log lines are meant to be read by a developer, not parsed back.
type textFormatter struct{}

var textFormatterInstance = &textFormatter{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := new(strings.Builder)
	b.WriteString(entry.Time.Format(time.RFC3339Nano))
	fmt.Fprintf(b, " %s", entry.Level.String())
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteString(" " + entry.Message + "\n")
	return []byte(b.String()), nil
}
