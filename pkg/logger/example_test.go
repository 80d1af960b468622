package logger_test

import (
	"errors"

	"github.com/wonny/trustrank/pkg/config"
	"github.com/wonny/trustrank/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	log := logger.New(&config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	})

	log.WithFields(map[string]interface{}{
		"company_id":  "c-000123",
		"trust_score": 54,
		"raw_score":   100,
	}).Info("Trust score capped")
}

// Example_withError demonstrates error logging
func Example_withError() {
	log := logger.New(&config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	})

	err := errors.New("database connection timeout")
	log.WithError(err).
		WithField("job", "score_recompute").
		Error("Recompute run failed")
}
