package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/metalearn/core"
	"github.com/trezcool/metalearn/core/user"
)

// Logger writes structured logs with zap and forwards them to Rollbar when enabled.
type Logger struct {
	zap *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// stackTracer hands the stack recorded by pkg/errors to Rollbar.
var stackTracer rollbar.StackTracerFunc = rollbarerrors.StackTracer

// NewZap builds the zap logger: human readable in debug, JSON otherwise.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	var zconf zap.Config
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zconf = zap.NewProductionConfig()
	}
	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return zl.With(zap.String("app", conf.AppName), zap.String("env", conf.Env)), nil
}

func New(zl *zap.Logger, conf *core.Config) *Logger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(stackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return &Logger{zap: zl}
}

// Sync flushes the zap buffers and waits for the Rollbar queue to drain.
func (l *Logger) Sync() {
	_ = l.zap.Sync()
	rollbar.Wait()
}

// prepare splits args (error, map[string]interface{}, user.User) into rollbar args and zap fields.
func (l *Logger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var usrSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]zap.Field, 0, len(args))

	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				rollbar.SetPerson(a.ID, a.Name, a.Email)
				fields = append(fields, zap.String("user_id", a.ID))
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			for k, v := range a {
				fields = append(fields, zap.Any(k, v))
			}
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.String("extra", fmt.Sprintf("%+v", a)))
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zap.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zap.Fatal(msg, fields...)
}
