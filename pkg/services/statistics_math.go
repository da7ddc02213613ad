package services

import (
	"math"

	"github.com/shopspring/decimal"
)

// calculateMean パッケージ内部用のヘルパー関数：平均値を計算
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateSampleStdDev 標本標準偏差（n-1で割る）。2件未満はNaN
func calculateSampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	mean := calculateMean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// rollingStdDev は各位置で直近window件の標本標準偏差を返します。
// ウィンドウ内の有効値がminPeriods未満の位置はnilです。
func rollingStdDev(values []*float64, window, minPeriods int) []*float64 {
	out := make([]*float64, len(values))
	if window <= 0 {
		return out
	}
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		valid := make([]float64, 0, window)
		for _, v := range values[start : i+1] {
			if v != nil && !math.IsNaN(*v) {
				valid = append(valid, *v)
			}
		}
		if len(valid) < minPeriods {
			continue
		}
		if sd := calculateSampleStdDev(valid); !math.IsNaN(sd) {
			out[i] = &sd
		}
	}
	return out
}

// calculatePctChange は (current-previous)/previous*100 を小数2桁で返します。
// previousがnil・0・NaN、またはcurrentがnil・NaNの場合はnilです。
func calculatePctChange(current, previous *float64) *float64 {
	if previous == nil || *previous == 0 || math.IsNaN(*previous) {
		return nil
	}
	if current == nil || math.IsNaN(*current) {
		return nil
	}
	v := roundTo((*current-*previous)/(*previous)*100, 2)
	return &v
}

// roundTo は銀行家丸め（偶数丸め）で指定桁に丸めます。
func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}

// roundPtr はnil・NaNを保ったまま丸めます。
func roundPtr(v *float64, places int32) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	r := roundTo(*v, places)
	return &r
}

func validValues(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}
