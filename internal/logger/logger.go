package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-backend/internal/goroutine"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер: JSON в production, текст в development.
func Init(level, env string) *logrus.Logger {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

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

	goroutine.SetLogger(Log)
	return Log
}

// L возвращает логгер приложения или стандартный логгер logrus до Init.
func L() *logrus.Logger {
	if Log == nil {
		return logrus.StandardLogger()
	}
	return Log
}
