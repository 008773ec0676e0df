package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// RollbarLogger reports to Rollbar and writes locally through zap.
type RollbarLogger struct {
	local *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{local: local.Sugar()}
}

// NewZapLogger returns the local logger: human readable in Debug mode, JSON otherwise.
func NewZapLogger(conf *core.Config) (*zap.Logger, error) {
	var zc zap.Config
	if conf.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zl, err := zc.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	return zl.With(zap.String("app", conf.AppName), zap.String("env", conf.Env)), nil
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes the local logger.
func (l RollbarLogger) Sync() error {
	return l.local.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.local.Debugw(msg, fields(args)...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.local.Infow(msg, fields(args)...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.local.Warnw(msg, fields(args)...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.local.Errorw(msg, fields(args)...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.local.Fatalw(msg, fields(args)...)
}

// fields turns logger args into zap key-value pairs.
func fields(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, 2*len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			kvs = append(kvs, "error", a.Error())
		case user.User:
			kvs = append(kvs, "user_id", a.ID, "user_role", a.Role)
		case map[string]interface{}:
			for k, v := range a {
				kvs = append(kvs, k, v)
			}
		default:
			kvs = append(kvs, fmt.Sprintf("arg%d", i), a)
		}
	}
	return kvs
}
