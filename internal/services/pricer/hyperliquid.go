package pricer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
)

// Hyperliquid prices bases from the mid prices of the Info API. Mids carry
// no 24h change, so Change24h is always null.
type Hyperliquid struct {
	retrier *retrier.Retrier
	mids    func(ctx context.Context) (map[string]string, error)
}

func NewHyperliquid(info *hyperliquid.Info, r *retrier.Retrier) (*Hyperliquid, error) {
	if info == nil {
		return nil, fmt.Errorf("hyperliquid info client is nil")
	}
	return &Hyperliquid{retrier: r, mids: info.AllMids}, nil
}

func (h *Hyperliquid) Name() string { return SourceHyperliquid }

func (h *Hyperliquid) Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error) {
	bases = normalizeBases(bases)
	out := make(map[string]domain.Quote, len(bases))
	if len(bases) == 0 {
		return out, nil
	}

	mids, err := retrier.DoWithData(h.retrier, ctx, h.mids)
	if err != nil {
		return out, errors.Wrap(err, "hyperliquid mids")
	}

	// mids are keyed by base coin, e.g. "BTC".
	for _, base := range bases {
		mid, ok := mids[base]
		if !ok || mid == "" {
			continue
		}
		if q, ok := parseQuote(mid, "", 1); ok {
			out[base] = q
		}
	}
	return out, nil
}
