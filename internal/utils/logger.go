package utils

import (
	"go.uber.org/zap"
)

// NewLogger builds the application logger. Development mode switches to the
// console encoder with debug level.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	return zap.NewProduction()
}
