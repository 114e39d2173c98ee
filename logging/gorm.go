package logging

import (
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// gormWriter forwards gorm's printf-style output to zerolog at debug level.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	l := With("gorm")
	l.Debug().Msgf(strings.TrimSpace(format), args...)
}

// GormLogger builds a gorm logger that writes through zerolog.
// Queries slower than slowThreshold are logged as warnings by gorm itself.
func GormLogger(level string, slowThreshold time.Duration) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch strings.ToLower(level) {
	case "trace", "debug":
		lvl = gormlogger.Info
	case "error":
		lvl = gormlogger.Error
	case "disabled", "off":
		lvl = gormlogger.Silent
	}

	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
