package services

import (
	"sort"

	"agri-price-api/pkg/models"
)

// summaryRow は要約計算用の1行（市場比較は日付ごとに畳み込み済み）
type summaryRow struct {
	date   string
	price  *float64
	volume *float64
}

// Calculate は系列と、それを生成したフィルタから要約統計を計算します。
// compare_marketsの系列は日付ごとに（価格は平均、数量は合計で）1系列にまとめてから計算します。
func (c *SummaryCalculator) Calculate(series []models.SeriesPoint, f models.Filter) *models.SummaryStats {
	if len(series) == 0 {
		return &models.SummaryStats{DataPoints: 0, MissingRate: 1.0}
	}

	rows := summaryRows(series, f.ChartType == models.ChartCompareMarkets)
	n := len(rows)
	stats := &models.SummaryStats{DataPoints: n}

	// 欠損率 = (価格の欠損率 + 数量の欠損率) / 2
	priceMissing, volumeMissing := 0, 0
	for _, r := range rows {
		if r.price == nil {
			priceMissing++
		}
		if r.volume == nil {
			volumeMissing++
		}
	}
	stats.MissingRate = roundTo((float64(priceMissing)/float64(n)+float64(volumeMissing)/float64(n))/2, 4)

	last := rows[n-1]
	stats.LatestPrice = roundPtr(last.price, 2)
	stats.LatestVolume = roundPtr(last.volume, 2)

	weekly := f.Granularity == models.GranularityWeekly

	// WoW: 週次は直前の行、日次は7行前
	switch {
	case weekly && n >= 2:
		stats.WoWPricePct = calculatePctChange(last.price, rows[n-2].price)
		stats.WoWVolumePct = calculatePctChange(last.volume, rows[n-2].volume)
	case !weekly && n >= 7:
		stats.WoWPricePct = calculatePctChange(last.price, rows[n-7].price)
		stats.WoWVolumePct = calculatePctChange(last.volume, rows[n-7].volume)
	}

	// MoM: 週次は5行前（足りなければ先頭行と比較してフラグを立てる）、日次は30行前
	switch {
	case weekly && n >= 5:
		stats.MoMPricePct = calculatePctChange(last.price, rows[n-5].price)
	case weekly && n >= 2:
		stats.MoMPricePct = calculatePctChange(last.price, rows[0].price)
		stats.MoMFromWindowStart = true
	case !weekly && n >= 30:
		stats.MoMPricePct = calculatePctChange(last.price, rows[n-30].price)
	}

	stats.Volatility14d = summaryVolatility(rows, f.Granularity)
	return stats
}

// summaryVolatility は有効な価格系列の最後のウィンドウの標準偏差です。
// 有効な価格が4件未満ならnilです。
func summaryVolatility(rows []summaryRow, g models.Granularity) *float64 {
	prices := make([]*float64, 0, len(rows))
	for _, r := range rows {
		if r.price != nil {
			prices = append(prices, r.price)
		}
	}
	if len(prices) < 4 {
		return nil
	}
	window := volatilityWindow(g)
	if window > len(prices) {
		window = len(prices)
	}
	rolling := rollingStdDev(prices, window, 2)
	return roundPtr(rolling[len(rolling)-1], 2)
}

func summaryRows(series []models.SeriesPoint, collapse bool) []summaryRow {
	if !collapse {
		rows := make([]summaryRow, len(series))
		for i, p := range series {
			rows[i] = summaryRow{date: p.Date, price: p.Price, volume: p.Volume}
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].date < rows[j].date })
		return rows
	}

	type acc struct {
		priceSum, volSum float64
		priceN, volN     int
	}
	accs := map[string]*acc{}
	var dates []string
	for _, p := range series {
		a := accs[p.Date]
		if a == nil {
			a = &acc{}
			accs[p.Date] = a
			dates = append(dates, p.Date)
		}
		if p.Price != nil {
			a.priceSum += *p.Price
			a.priceN++
		}
		if p.Volume != nil {
			a.volSum += *p.Volume
			a.volN++
		}
	}
	sort.Strings(dates)

	rows := make([]summaryRow, 0, len(dates))
	for _, d := range dates {
		a := accs[d]
		r := summaryRow{date: d}
		if a.priceN > 0 {
			r.price = models.Float64Ptr(a.priceSum / float64(a.priceN))
		}
		if a.volN > 0 {
			r.volume = models.Float64Ptr(a.volSum)
		}
		rows = append(rows, r)
	}
	return rows
}
