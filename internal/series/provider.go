package series

import (
	"fmt"

	"executor-metrics-backend/config"
	"executor-metrics-backend/internal/hostid"
)

// NewBuilderFromConfig builds the shared series builder from the SERIES_* settings.
func NewBuilderFromConfig(cfg *config.Config) (*Builder, error) {
	mode, err := hostid.ParseGroupingMode(cfg.Series.HostGrouping)
	if err != nil {
		return nil, fmt.Errorf("invalid SERIES_HOST_GROUPING: %w", err)
	}
	opts := DefaultOptions()
	opts.Grouping = mode
	if cfg.Series.SystemNamespace != "" {
		opts.SystemNamespace = cfg.Series.SystemNamespace
	}
	if cfg.Series.LeadIn > 0 {
		opts.LeadIn = cfg.Series.LeadIn
	}
	if cfg.Series.CumulativePrefixes != nil {
		opts.CumulativePrefixes = cfg.Series.CumulativePrefixes
	}
	return NewBuilder(opts), nil
}
