// Package logger is the process-wide structured logger. It wraps zerolog
// with the key/value call style used throughout the signer.
package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/utils"
)

const EnvProduction = "production"

var log = zerolog.New(utils.ZerologConsoleWriter()).With().Timestamp().Logger()

// Init configures the global logger. Production environments log JSON to
// stdout; everything else gets the human readable console writer.
func Init(environment string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	if environment == EnvProduction {
		log = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(utils.ZerologConsoleWriter()).Level(level).With().Timestamp().Logger()
}

// Logger returns the configured zerolog logger so components can derive
// their own child loggers.
func Logger() zerolog.Logger {
	return log
}

func Debug(msg string, keyValues ...interface{}) {
	withFields(log.Debug(), keyValues).Msg(msg)
}

func Info(msg string, keyValues ...interface{}) {
	withFields(log.Info(), keyValues).Msg(msg)
}

func Warn(msg string, keyValues ...interface{}) {
	withFields(log.Warn(), keyValues).Msg(msg)
}

func Error(msg string, err error, keyValues ...interface{}) {
	withFields(log.Error().Err(err), keyValues).Msg(msg)
}

// Fatal logs and exits the process.
func Fatal(msg string, err error) {
	log.Fatal().Err(err).Msg(msg)
}

func withFields(e *zerolog.Event, keyValues []interface{}) *zerolog.Event {
	for i := 0; i < len(keyValues); i += 2 {
		key := fmt.Sprint(keyValues[i])
		if i+1 >= len(keyValues) {
			e = e.Interface(key, nil)
			break
		}
		e = e.Interface(key, keyValues[i+1])
	}
	return e
}
