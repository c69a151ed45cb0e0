package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var base *zap.Logger

var serviceName = "market_watch"

// Init устанавливает глобальный логгер. Вызывается один раз из main.
func Init(l *zap.Logger) {
	base = l
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func l() *zap.Logger {
	if base == nil {
		panic("logger is not initialized")
	}
	return base.With(zap.String("service", serviceName))
}

func Info(format string, args ...interface{}) {
	l().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	l().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	l().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	l().Fatal(fmt.Sprintf(format, args...))
}
