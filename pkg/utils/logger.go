package utils

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

// Event names attached to structured log lines
const (
	EventOrderPlaced    = "order_placed"
	EventOrderRejected  = "order_rejected"
	EventOrderCancelled = "order_cancelled"
	EventOrderExpired   = "order_expired"
	EventOrderEvicted   = "order_evicted"
	EventStopTriggered  = "stop_triggered"
	EventTradeExecuted  = "trade_executed"
	EventTradeForwarded = "trade_forwarded"
	EventServerStarted  = "server_started"
	EventServerStopped  = "server_stopped"
)

func init() {
	// Logger settings
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "message",
		},
	})
	Logger.SetLevel(logrus.InfoLevel)
}

// SetLevel parses a level name such as "debug" or "warn". Unknown names fall back to info.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}

// LogError logs errors
func LogError(err error) {
	Logger.WithFields(logrus.Fields{
		"error": err.Error(),
	}).Error("Error occurred")
}
