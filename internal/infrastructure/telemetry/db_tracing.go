package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterGormTracing adds otelgorm spans to the SQLite session database.
// Query variables are never recorded; session values include auth tokens.
func RegisterGormTracing(db *gorm.DB, enabled bool, logger *zap.Logger) error {
	if !enabled {
		return nil
	}
	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName("sqlite"),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Session database tracing enabled")
	}
	return nil
}
