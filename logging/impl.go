package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// writeMu serializes appender writes across every logger in the process. Subloggers share their
// parent's appender slice and test appenders panic when written to after the test has returned.
var writeMu sync.Mutex

// callerDepth skips caller, logger.write and the exported logging method.
const callerDepth = 3

type logger struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

func newLogger(name string, level Level, inUTC bool, appenders ...Appender) *logger {
	return &logger{name: name, level: NewAtomicLevelAt(level), inUTC: inUTC, appenders: appenders}
}

func (l *logger) AddAppender(appender Appender) {
	writeMu.Lock()
	l.appenders = append(l.appenders, appender)
	writeMu.Unlock()
}

func (l *logger) SetLevel(level Level) { l.level.Set(level) }

func (l *logger) GetLevel() Level { return l.level.Get() }

func (l *logger) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	return newLogger(name, l.level.Get(), l.inUTC, l.appenders...)
}

func (l *logger) Sync() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (l *logger) AsZap() *zap.SugaredLogger {
	writeMu.Lock()
	var cores []zapcore.Core
	for _, appender := range l.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			cores = append(cores, core)
		}
	}
	writeMu.Unlock()

	config := NewZapLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(l.level.Get().AsZap())
	base := zap.Must(config.Build())
	if len(cores) > 0 {
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{c}, cores...)...)
		}))
	}
	return base.Sugar().Named(l.name)
}

// enabled reports whether an entry at level passes the logger's threshold.
func (l *logger) enabled(level Level) bool {
	return level >= l.level.Get()
}

// debugFields returns the fields marking an entry as emitted by a debug-mode context, and whether
// the context is in debug mode at all.
func debugFields(ctx context.Context) ([]zapcore.Field, bool) {
	key, ok := DebugKey(ctx)
	if !ok {
		return nil, false
	}
	return []zapcore.Field{zap.String(debugKeyField, key)}, true
}

func (l *logger) write(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
		Caller:     caller(),
	}
	if l.inUTC {
		entry.Time = entry.Time.UTC()
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	for _, appender := range l.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up alternating keys and values. A trailing key without a value is kept with an
// error value so the misuse shows up in the output.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.Errorf("no value for log key %q", key)))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (l *logger) Debug(args ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (l *logger) Debugf(template string, args ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, fmt.Sprintf(template, args...), nil)
	}
}

func (l *logger) Debugw(msg string, keysAndValues ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, msg, toFields(keysAndValues))
	}
}

// The context variants log when either the level allows debug output or ctx carries a debug key.
// Entries forced through by the context are tagged with that key.

func (l *logger) CDebug(ctx context.Context, args ...interface{}) {
	if extra, forced := debugFields(ctx); forced || l.enabled(DEBUG) {
		l.write(DEBUG, fmt.Sprint(args...), extra)
	}
}

func (l *logger) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if extra, forced := debugFields(ctx); forced || l.enabled(DEBUG) {
		l.write(DEBUG, fmt.Sprintf(template, args...), extra)
	}
}

func (l *logger) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if extra, forced := debugFields(ctx); forced || l.enabled(DEBUG) {
		l.write(DEBUG, msg, append(toFields(keysAndValues), extra...))
	}
}

func (l *logger) Info(args ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, fmt.Sprint(args...), nil)
	}
}

func (l *logger) Infof(template string, args ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, fmt.Sprintf(template, args...), nil)
	}
}

func (l *logger) Infow(msg string, keysAndValues ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, msg, toFields(keysAndValues))
	}
}

func (l *logger) Warn(args ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, fmt.Sprint(args...), nil)
	}
}

func (l *logger) Warnf(template string, args ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, fmt.Sprintf(template, args...), nil)
	}
}

func (l *logger) Warnw(msg string, keysAndValues ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, msg, toFields(keysAndValues))
	}
}

func (l *logger) Error(args ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, fmt.Sprint(args...), nil)
	}
}

func (l *logger) Errorf(template string, args ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, fmt.Sprintf(template, args...), nil)
	}
}

func (l *logger) Errorw(msg string, keysAndValues ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, msg, toFields(keysAndValues))
	}
}

func caller() zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(callerDepth)
	if !ok {
		return zapcore.EntryCaller{}
	}
	ec := zapcore.NewEntryCaller(pc, file, line, true)
	if fn := runtime.FuncForPC(pc); fn != nil {
		ec.Function = fn.Name()
	}
	return ec
}
