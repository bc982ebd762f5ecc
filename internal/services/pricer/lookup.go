package pricer

import (
	"context"

	"github.com/vadiminshakov/chainguardian/internal/accounting"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/metrics"
	"go.uber.org/zap"
)

// Lookup adapts an oracle to the accounting engine. Oracle failures degrade
// to whatever quotes were obtained; bases without a quote are valued as
// unknown rather than failing the refresh.
func Lookup(o Oracle, logger *zap.Logger) accounting.PriceLookup {
	return func(ctx context.Context, bases []string) map[string]domain.Quote {
		quotes, err := o.Prices(ctx, bases)
		if err != nil {
			metrics.OracleRequests.WithLabelValues(o.Name(), "error").Inc()
			logger.Warn("price oracle failed, positions valued without prices",
				zap.String("source", o.Name()),
				zap.Strings("bases", bases),
				zap.Error(err))
		} else {
			metrics.OracleRequests.WithLabelValues(o.Name(), "ok").Inc()
		}
		if quotes == nil {
			quotes = map[string]domain.Quote{}
		}
		return quotes
	}
}
