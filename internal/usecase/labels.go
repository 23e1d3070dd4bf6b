package usecase

import "ilfeat/internal/domain"

// Conditions bounds the measurement conditions of accepted labels.
type Conditions struct {
	MinTemperatureK float64
	MaxTemperatureK float64
	MinPressureKPa  float64
	MaxPressureKPa  float64 // exclusive
	// DefaultPressureKPa stands in for labels recorded without a pressure.
	DefaultPressureKPa float64
}

// AmbientConditions accepts (298 ± 1) K at atmospheric pressure.
var AmbientConditions = Conditions{
	MinTemperatureK:    297,
	MaxTemperatureK:    299,
	MinPressureKPa:     100,
	MaxPressureKPa:     102,
	DefaultPressureKPa: 101,
}

func (c Conditions) Accept(p domain.PropertyValue) bool {
	pressure := p.PressureKPa
	if pressure == 0 {
		pressure = c.DefaultPressureKPa
	}
	return p.TemperatureK >= c.MinTemperatureK && p.TemperatureK <= c.MaxTemperatureK &&
		pressure >= c.MinPressureKPa && pressure < c.MaxPressureKPa
}

func filterLabels(props []domain.PropertyValue, cond *Conditions) []domain.PropertyValue {
	if cond == nil {
		return props
	}
	var out []domain.PropertyValue
	for _, p := range props {
		if cond.Accept(p) {
			out = append(out, p)
		}
	}
	return out
}
