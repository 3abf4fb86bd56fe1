// Package memlog provides structured logging for the memory inspection
// engine using zap.
package memlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with engine-specific field helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance. Defaults to a no-op logger so
	// packages can log unconditionally before Init is called.
	L    = Nop()
	once sync.Once
)

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// Nop creates a no-op logger, used by tests and by callers that never
// configured logging explicitly.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithSession returns a logger with the session correlation id preset.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("session", sessionID))}
}

// ChunkSkipped logs a non-fatal chunk read failure. Value Searcher,
// Snapshot Engine and Reference Tracer all swallow these per spec.
func (l *Logger) ChunkSkipped(op string, addr uint64, err error) {
	l.Debug("chunk read skipped",
		zap.String("op", op),
		Addr(addr),
		zap.Error(err),
	)
}

// Hex formats a uint64 as a 0x-prefixed hex string for logging.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789ABCDEF"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a byte-size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Count creates a count field.
func Count(name string, n int) zap.Field {
	return zap.Int(name, n)
}
