package xfer

// Logger receives diagnostics. glog.V(n) satisfies it on hosts; firmware
// usually wraps println.
type Logger interface {
	Infof(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
