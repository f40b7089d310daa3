package httpclient

import "fmt"

// Logger defines the logging surface the client relies on.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// engineLogger routes resty's printf-style diagnostics into Logger.
type engineLogger struct {
	log Logger
}

func (l engineLogger) Errorf(format string, v ...interface{}) {
	l.log.ErrorObj("transfer engine error", "engine_message", fmt.Sprintf(format, v...))
}

func (l engineLogger) Warnf(format string, v ...interface{}) {
	l.log.WarnObj("transfer engine warning", "engine_message", fmt.Sprintf(format, v...))
}

func (l engineLogger) Debugf(format string, v ...interface{}) {
	l.log.DebugObj("transfer engine debug", "engine_message", fmt.Sprintf(format, v...))
}
