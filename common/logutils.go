package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

const ServiceName = "mangaapi"

// init configures the standard logger: JSON in release mode, LOG_LEVEL honored when valid.
func init() {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	if os.Getenv("GIN_MODE") == "release" {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	hook := &DefaultFieldsHook{Service: ServiceName}
	if hostname, err := os.Hostname(); err == nil {
		hook.Instance = hostname
	}
	logger.AddHook(hook)
}

// DefaultFieldsHook stamps every entry with the service identity.
type DefaultFieldsHook struct {
	Service  string
	Instance string
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["serviceName"] = hook.Service
	if hook.Instance != "" {
		e.Data["serviceInstance"] = hook.Instance
	}
	return nil
}
