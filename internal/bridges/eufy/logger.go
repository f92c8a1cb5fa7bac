package eufy

import "sync"

// Logger is the structured logger used by this package.
// It is satisfied by *logging.Logger (slog) and by test doubles.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// logHolder guards an optional logger. A nil logger discards everything.
type logHolder struct {
	mu     sync.RWMutex
	logger Logger
}

func (h *logHolder) set(logger Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

func (h *logHolder) get() Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}

func (h *logHolder) debug(msg string, keysAndValues ...any) {
	if l := h.get(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (h *logHolder) info(msg string, keysAndValues ...any) {
	if l := h.get(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (h *logHolder) warn(msg string, keysAndValues ...any) {
	if l := h.get(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (h *logHolder) error(msg string, keysAndValues ...any) {
	if l := h.get(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
