package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Series is one counter value for one attribute combination.
type Series struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
}

// Collector keeps service metrics in process and reads them on demand.
type Collector struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

func NewCollector() *Collector {
	reader := sdkmetric.NewManualReader()
	return &Collector{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader:   reader,
	}
}

func (c *Collector) MeterProvider() metric.MeterProvider {
	return c.provider
}

// Snapshot returns every int64 sum recorded so far, sorted by name and then
// by attributes.
func (c *Collector) Snapshot(ctx context.Context) ([]Series, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	series := make([]Series, 0)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := make(map[string]string, dp.Attributes.Len())
				for _, kv := range dp.Attributes.ToSlice() {
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				series = append(series, Series{Name: m.Name, Attributes: attrs, Value: dp.Value})
			}
		}
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].Name != series[j].Name {
			return series[i].Name < series[j].Name
		}
		return fmt.Sprint(series[i].Attributes) < fmt.Sprint(series[j].Attributes)
	})
	return series, nil
}

func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
