// Package log provides the structured logger injected into pkg/engine and
// pkg/config: a thin wrapper around logrus.Logger configured the way
// r3e-network-service_layer's pkg/logger/logger.go configures its own —
// level from a string, text or JSON formatter, stdout by default.
//
// Grounded on pkg/logger/logger.go (r3e-network-service_layer), the only
// repo in the retrieval pack that wires logrus end to end; the teacher,
// blackcoderx-falcon, has no logging library of its own and relies on
// fmt.Errorf/fmt.Printf throughout.
package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls New's formatter/level/output selection, mirroring the
// teacher's config-resolution style: plain strings decoded from
// pkg/config's merged settings tree rather than typed enums.
type Config struct {
	Level  string // "debug", "info", "warn", "error"; default "info"
	Format string // "json" or "text"; default "text"
}

// New builds a logrus.FieldLogger writing to stdout. Debug level logs
// every generated Case before dispatch (spec section 4.J); info level
// logs only phase/operation transitions and warnings.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(os.Stdout)

	return logger
}

// NewDefault is New with info-level text logging, the same "zero
// configuration needed" default NewDefault offers in the pack.
func NewDefault() *logrus.Logger {
	return New(Config{Level: "info", Format: "text"})
}
