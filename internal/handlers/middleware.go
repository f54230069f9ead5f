package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

// RequestLogger tags every request with an id and logs its outcome.
func RequestLogger(log logrus.FieldLogger) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		requestID := e.Request.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		e.Response.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		err := e.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     e.Request.Method,
			"path":       e.Request.URL.Path,
			"duration":   time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("request returned error")
		} else {
			entry.WithField("status", e.Status()).Info("request handled")
		}
		return err
	}
}
