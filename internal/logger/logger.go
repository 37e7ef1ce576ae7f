// Package logger wires the process-wide zerolog logger used by every
// agent and HTTP handler in kolmodin.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide base logger. Component loggers below derive
// from it via .With().
var Log zerolog.Logger

// Initialize sets up the global logger. pretty selects human-readable
// console output (development); false selects JSON (production).
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "kolmodin").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

func component(name string) *zerolog.Logger {
	l := Log.With().Str("component", name).Logger()
	return &l
}

// Twitch returns the component logger shared by the Token Provider,
// Twitch Service, Channel Agents and IRC Connection Workers.
func Twitch() *zerolog.Logger { return component("twitch") }

// Lobby returns the component logger used by the Lobby Manager and Lobby
// Agents.
func Lobby() *zerolog.Logger { return component("lobby") }

// Gateway returns the component logger used by the WebSocket session
// handler (reader/writer tasks).
func Gateway() *zerolog.Logger { return component("gateway") }

// HTTP returns the component logger used by HTTP middleware and handlers.
func HTTP() *zerolog.Logger { return component("http") }
