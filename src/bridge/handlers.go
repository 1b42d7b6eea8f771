package bridge

import (
	"fmt"
	"time"

	"ta-fetcher/src/models"
)

// resultHandler checks one result of its kind and returns the bar to store
// plus the flattened indicator values.
type resultHandler func(r models.MIndicatorResult, loc *time.Location) (models.MOHLCRow, map[string]float64, error)

// -----------------------------------------------------------------------------

func newHandlerTable() map[models.IndicatorKind]resultHandler {
	table := make(map[models.IndicatorKind]resultHandler, len(models.IndicatorSpecs))
	for kind, spec := range models.IndicatorSpecs {
		table[kind] = handlerFor(kind, spec)
	}
	return table
}

// -----------------------------------------------------------------------------

func handlerFor(kind models.IndicatorKind, spec models.IndicatorSpec) resultHandler {
	return func(r models.MIndicatorResult, loc *time.Location) (models.MOHLCRow, map[string]float64, error) {
		if r.Values == nil || r.Values.Kind() != kind {
			return models.MOHLCRow{}, nil, fmt.Errorf("%s result for %s carries %T", spec.Name, r.Bar.Product, r.Values)
		}
		if r.Bar.Product == "" {
			return models.MOHLCRow{}, nil, fmt.Errorf("%s result without product", spec.Name)
		}

		bar := r.Bar
		if bar.Datetime.IsZero() {
			var err error
			if bar, err = bar.WithDatetime(loc); err != nil {
				return models.MOHLCRow{}, nil, err
			}
		}

		fields := r.Values.Fields()
		values := make(map[string]float64, len(spec.Fields))
		for _, f := range spec.Fields {
			values[f] = fields[f]
		}
		return bar, values, nil
	}
}
