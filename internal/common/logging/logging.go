package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ============================================================
// Logger builder
// ============================================================

type Builder struct {
	writer  io.Writer
	level   string
	console bool
	service string
}

func New(service string) *Builder {
	return &Builder{writer: os.Stdout, level: "info", service: service}
}

// FromWriter направляет вывод в w (по умолчанию stdout).
func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// Level задает уровень: trace, debug, info, warn, error. Пустая строка - info.
func (b *Builder) Level(level string) *Builder {
	b.level = level
	return b
}

// Format: "json" (по умолчанию) или "console" для разработки.
func (b *Builder) Format(format string) *Builder {
	b.console = strings.EqualFold(format, "console")
	return b
}

func (b *Builder) Make() (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if b.level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(b.level))
		if err != nil {
			return zerolog.Nop(), err
		}
		level = parsed
	}

	w := b.writer
	if b.console {
		w = zerolog.ConsoleWriter{Out: b.writer, TimeFormat: "15:04:05", NoColor: true}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", b.service).
		Logger(), nil
}
