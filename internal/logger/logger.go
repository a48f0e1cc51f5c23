package logger

import (
	"github.com/sirupsen/logrus"
)

// Log доступен сразу, до вызова Init, чтобы пакеты и тесты не проверяли nil.
var Log = logrus.New()

// serviceHook добавляет имя сервиса и окружение в каждую запись.
type serviceHook struct {
	fields logrus.Fields
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}

// Init настраивает общий логгер. В development пишет текстом, иначе JSON.
func Init(level, env string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	Log.AddHook(serviceHook{fields: logrus.Fields{"service": "mountescrow", "env": env}})
}

// RecoveryLogger направляет сообщения goroutine.RecoveryHandler в общий логгер.
type RecoveryLogger struct{}

func (RecoveryLogger) Errorf(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}
