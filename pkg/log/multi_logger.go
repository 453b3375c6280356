package log

// MultiLogger fans events out to several loggers, e.g. a SlogAdapter for the
// console and a FileLogger for a trace file.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil and NoopLogger values are
// skipped and nested MultiLoggers are flattened, so each sink sees an
// event once per Log call.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	m.add(loggers)
	return m
}

func (m *MultiLogger) add(loggers []Logger) {
	for _, l := range loggers {
		switch l := l.(type) {
		case nil, NoopLogger:
		case *MultiLogger:
			if l != nil {
				m.add(l.loggers)
			}
		default:
			m.loggers = append(m.loggers, l)
		}
	}
}

// Len returns the number of sinks.
func (m *MultiLogger) Len() int {
	return len(m.loggers)
}

// Log sends the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
