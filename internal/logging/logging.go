// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// New builds a logger writing to w. Console output is human readable,
// otherwise one JSON object per line.
func New(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Init configures the process logger on stderr, using the console format
// when stderr is a terminal.
func Init(level zerolog.Level) zerolog.Logger {
	logger := New(os.Stderr, level, term.IsTerminal(int(os.Stderr.Fd())))
	log.Logger = logger

	if level <= zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
	return logger
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, err
	}
	return level, nil
}
