package services

import (
	"fmt"
	"log"

	"agri-price-api/pkg/models"
)

// 市場ランキングの指標
const (
	MetricPrice  = "price"
	MetricVolume = "volume"
	MetricChange = "change"
)

// QueryResult はクエリの実行結果です。
// Filterには実際に適用された条件（intentによるchart_typeの上書き、品種・市場のフォールバック）が入ります。
type QueryResult struct {
	Series   []models.SeriesPoint
	Filter   models.Filter
	Warnings []string
}

// Empty 系列が空かどうか
func (r *QueryResult) Empty() bool {
	return len(r.Series) == 0
}

// QueryEngine は解決済みのフィルタをデータセットに適用します。
type QueryEngine struct {
	dataset *DatasetContext
}

// NewQueryEngine は新しいQueryEngineを生成します。
func NewQueryEngine(dataset *DatasetContext) *QueryEngine {
	return &QueryEngine{dataset: dataset}
}

// Execute はフィルタに従って絞り込み・集計を行います。
// 対象が0件の場合はエラーではなく空の系列と警告を返します。
func (e *QueryEngine) Execute(f models.Filter) (*QueryResult, error) {
	t, err := e.dataset.Table()
	if err != nil {
		return nil, err
	}

	ef := f.Clone()
	var (
		series   []models.SeriesPoint
		warnings []string
	)

	// intentはchart_typeより先に評価し、指定されたchart_typeを上書きする
	switch ef.Intent {
	case models.IntentHighAvgPrice:
		series, warnings = queryHighAvgPrice(t, &ef)
	case models.IntentHighPriceChange:
		series, warnings = queryHighPriceChange(t, &ef)
	case models.IntentHighVolatility:
		ef.ChartType = models.ChartVolatility
		warnings = append(warnings, "변동성 분석 차트로 표시합니다.")
		s, w := queryVolatility(t, &ef)
		series, warnings = s, append(warnings, w...)
	default:
		series, warnings = dispatchChart(t, &ef)
	}

	log.Printf("🔎 [query] item=%s chart=%s intent=%s granularity=%s → %d points",
		ef.ItemName, ef.ChartType, ef.Intent, ef.Granularity, len(series))

	if series == nil {
		series = []models.SeriesPoint{}
	}
	return &QueryResult{Series: series, Filter: ef, Warnings: warnings}, nil
}

func dispatchChart(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	switch f.ChartType {
	case models.ChartTrend, models.ChartVolumePrice:
		// volume_priceは表示側の違いのみで、データはtrendと同じ
		return queryTrend(t, f)
	case models.ChartCompareMarkets:
		return queryCompareMarkets(t, f)
	case models.ChartVolatility:
		return queryVolatility(t, f)
	}
	warnings := []string{fmt.Sprintf("알 수 없는 chart_type: %s, trend로 대체합니다.", f.ChartType)}
	f.ChartType = models.ChartTrend
	s, w := queryTrend(t, f)
	return s, append(warnings, w...)
}

func queryTrend(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	rows, warnings := applyFilters(t, f, filterOptions{})
	if len(rows) == 0 {
		return nil, warnings
	}
	return toSeries(aggregateByGranularity(rows, f.Granularity, false), false), warnings
}

// queryCompareMarkets は取引金額の合計が大きい上位N市場を市場別に集計します。
func queryCompareMarkets(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	rows, warnings := applyFilters(t, f, filterOptions{ignoreMarket: true})
	if len(rows) == 0 {
		return nil, warnings
	}

	totals := totalsByMarket(rows, func(r *PriceRecord) *float64 { return r.AmountKRW }, false)
	top := topMarketNames(rankMarkets(totals, false), f.TopNMarkets)
	if len(top) == 0 {
		return nil, append(warnings, "비교할 시장이 없습니다.")
	}

	rows = selectRows(rows, inMarkets(top))
	return toSeries(aggregateByGranularity(rows, f.Granularity, true), true), warnings
}

// queryVolatility は価格のローリング標準偏差を付けた系列を返します。
// 系列がウィンドウより短い場合は全期間の標準偏差で代用します。
func queryVolatility(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	rows, warnings := applyFilters(t, f, filterOptions{})
	if len(rows) == 0 {
		return nil, warnings
	}

	agg := aggregateByGranularity(rows, f.Granularity, false)
	prices := make([]*float64, len(agg))
	for i, r := range agg {
		prices[i] = r.Price
	}

	window := volatilityWindow(f.Granularity)
	var vol []*float64
	if len(agg) >= window {
		vol = rollingStdDev(prices, window, 2)
	} else {
		vol = make([]*float64, len(agg))
		sd := calculateSampleStdDev(validValues(prices))
		for i := range vol {
			v := sd
			vol[i] = &v
		}
		warnings = append(warnings, "데이터가 부족하여 전체 기간 변동성을 계산했습니다.")
	}

	series := toSeries(agg, false)
	for i := range series {
		series[i].Volatility = roundPtr(vol[i], 2)
	}
	return series, warnings
}

// queryHighAvgPrice は平均価格が高い上位N市場を市場比較として返します。
func queryHighAvgPrice(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	f.ChartType = models.ChartCompareMarkets
	rows, warnings := applyFilters(t, f, filterOptions{ignoreMarket: true})
	if len(rows) == 0 {
		return nil, warnings
	}
	warnings = append(warnings, "'비싼' 분석을 위해 시장별 비교 차트로 표시합니다.")

	totals := totalsByMarket(rows, func(r *PriceRecord) *float64 { return r.PriceKg }, true)
	top := topMarketNames(rankMarkets(totals, false), f.TopNMarkets)
	if len(top) == 0 {
		return nil, warnings
	}

	// 品目単位のテーブルから選ばれた市場を取り直し、期間を再適用する
	item := f.ItemName
	selected := selectRows(t.rows(), func(r *PriceRecord) bool { return r.ItemName == item })
	selected = selectRows(selected, inMarkets(top))
	selected = applyDateBounds(selected, f)

	return toSeries(aggregateByGranularity(selected, f.Granularity, true), true), warnings
}

// queryHighPriceChange は期間の最初と最後のバケットで価格上昇率が大きい上位N市場を返します。
// 2バケット以上ある市場がなければ通常のtrendにフォールバックします。
func queryHighPriceChange(t *Table, f *models.Filter) ([]models.SeriesPoint, []string) {
	rows, warnings := applyFilters(t, f, filterOptions{ignoreMarket: true})
	if len(rows) == 0 {
		return nil, warnings
	}

	agg := aggregateByGranularity(rows, f.Granularity, true)
	changes := priceChangesByMarket(agg)

	totals := make([]marketTotal, 0, len(changes))
	for _, c := range changes {
		if c.change != nil {
			totals = append(totals, marketTotal{market: c.market, value: c.change})
		}
	}
	top := topMarketNames(rankMarkets(totals, false), f.TopNMarkets)

	if len(top) == 0 {
		warnings = append(warnings, "상승률을 계산할 수 있는 시장이 없습니다.")
		f.ChartType = models.ChartTrend
		s, w := queryTrend(t, f)
		return s, appendUnique(warnings, w...)
	}

	f.ChartType = models.ChartCompareMarkets
	warnings = append(warnings, "가격 상승률이 높은 시장을 표시합니다.")

	keep := map[string]bool{}
	for _, m := range top {
		keep[m] = true
	}
	selected := make([]aggRow, 0, len(agg))
	for _, r := range agg {
		if keep[r.Market] {
			selected = append(selected, r)
		}
	}
	return toSeries(selected, true), warnings
}

type marketChange struct {
	market      string
	first, last *float64
	change      *float64
}

// priceChangesByMarket は市場ごとに最初と最後のバケットの価格変化率を求めます。
// aggは日付順に並んでいる前提です。市場の順序は初出順です。
func priceChangesByMarket(agg []aggRow) []marketChange {
	byMarket := map[string][]aggRow{}
	var order []string
	for _, r := range agg {
		if _, ok := byMarket[r.Market]; !ok {
			order = append(order, r.Market)
		}
		byMarket[r.Market] = append(byMarket[r.Market], r)
	}

	out := make([]marketChange, 0, len(order))
	for _, m := range order {
		rs := byMarket[m]
		mc := marketChange{market: m}
		if len(rs) >= 2 {
			mc.first, mc.last = rs[0].Price, rs[len(rs)-1].Price
			if mc.first != nil && *mc.first > 0 && mc.last != nil {
				mc.change = models.Float64Ptr((*mc.last - *mc.first) / *mc.first * 100)
			}
		}
		out = append(out, mc)
	}
	return out
}

// TopMarkets は指標（平均価格・総数量・価格変化率）で市場をランキングします。
// 市場の指定は無視し、品目・品種・期間で絞り込んだ範囲が対象です。
func (e *QueryEngine) TopMarkets(f models.Filter, metric string, ascending bool, topN int) ([]models.MarketStat, []string, error) {
	t, err := e.dataset.Table()
	if err != nil {
		return nil, nil, err
	}
	if topN <= 0 {
		topN = f.TopNMarkets
	}

	ef := f.Clone()
	rows, warnings := applyFilters(t, &ef, filterOptions{ignoreMarket: true})
	if len(rows) == 0 {
		return []models.MarketStat{}, warnings, nil
	}

	var (
		totals []marketTotal
		detail = map[string]models.MarketStat{}
	)
	switch metric {
	case MetricPrice:
		totals = totalsByMarket(rows, func(r *PriceRecord) *float64 { return r.PriceKg }, true)
		for _, mt := range totals {
			detail[mt.market] = models.MarketStat{MarketName: mt.market, AvgPrice: roundPtr(mt.value, 2)}
		}
	case MetricVolume:
		totals = totalsByMarket(rows, func(r *PriceRecord) *float64 { return r.VolumeKg }, false)
		for _, mt := range totals {
			detail[mt.market] = models.MarketStat{MarketName: mt.market, TotalVolume: roundPtr(mt.value, 2)}
		}
	case MetricChange:
		for _, c := range priceChangesByMarket(aggregateByGranularity(rows, ef.Granularity, true)) {
			totals = append(totals, marketTotal{market: c.market, value: c.change})
			detail[c.market] = models.MarketStat{
				MarketName:     c.market,
				PriceChangePct: roundPtr(c.change, 2),
				FirstPrice:     roundPtr(c.first, 2),
				LastPrice:      roundPtr(c.last, 2),
			}
		}
	default:
		return nil, nil, &models.SchemaValidationError{Message: fmt.Sprintf("metric は price / volume / change のいずれかです: %q", metric)}
	}

	ranked := topMarketNames(rankMarkets(totals, ascending), topN)
	out := make([]models.MarketStat, 0, len(ranked))
	for _, m := range ranked {
		out = append(out, detail[m])
	}
	return out, warnings, nil
}

func volatilityWindow(g models.Granularity) int {
	if g == models.GranularityWeekly {
		return 4
	}
	return 14
}

// appendUnique はまだ含まれていない警告だけを追加します。
func appendUnique(warnings []string, more ...string) []string {
	seen := make(map[string]bool, len(warnings))
	for _, w := range warnings {
		seen[w] = true
	}
	for _, w := range more {
		if !seen[w] {
			warnings = append(warnings, w)
			seen[w] = true
		}
	}
	return warnings
}
