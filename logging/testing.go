package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// NewTestAppender returns an appender that writes through tb.Log, so that each line is attributed
// to the test that produced it. Entries are formatted the same way as ConsoleAppender's.
func NewTestAppender(tb testing.TB) Appender {
	return testAppender{tb}
}

type testAppender struct {
	tb testing.TB
}

func (tapp testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	line, err := formatLine(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp testAppender) Sync() error {
	return nil
}
