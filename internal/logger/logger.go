package logger

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"facilities-maintenance-backend/config"
)

// Logger is the process-wide logger. It is replaced by Initialize.
var Logger = logrus.StandardLogger()

// Initialize configures the process-wide logger from cfg.
func Initialize(cfg config.LogConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(cfg.Level))

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	Logger = l
	return l
}

func parseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// WithComponent creates a logger tagged with a component name.
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// WithSchedule creates a logger with maintenance schedule context.
func WithSchedule(scheduleID int64, name string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"schedule_id":   scheduleID,
		"schedule_name": name,
		"component":     "schedule_generator",
	})
}

// WithWorkOrder creates a logger with work order context.
func WithWorkOrder(workOrderID int64, reference string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"work_order_id": workOrderID,
		"reference":     reference,
	})
}

// WithJob creates a logger for a periodic job run.
func WithJob(job string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"job":       job,
		"component": "scheduler",
	})
}

// WithError creates a logger with error context.
func WithError(err error, component string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"error":     err.Error(),
		"component": component,
	})
}
