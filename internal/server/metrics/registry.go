package metrics

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Registry owns an SDK meter provider read on demand by a manual reader.
type Registry struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func NewRegistry() *Registry {
	reader := sdkmetric.NewManualReader()
	return &Registry{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (r *Registry) Meter() metric.Meter {
	return r.provider.Meter(meterName)
}

// Snapshot returns every int64 sum keyed as "name{key=value,...}".
func (r *Registry) Snapshot(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[seriesName(m.Name, dp.Attributes)] = dp.Value
			}
		}
	}
	return out, nil
}

func (r *Registry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func seriesName(name string, set attribute.Set) string {
	kvs := set.ToSlice()
	if len(kvs) == 0 {
		return name
	}
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}
