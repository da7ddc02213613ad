package models

// SeriesPoint 集計済みの1行
type SeriesPoint struct {
	Date       string   `json:"date"`
	Price      *float64 `json:"price"`
	Volume     *float64 `json:"volume"`
	MarketName *string  `json:"market_name"`
	Volatility *float64 `json:"volatility,omitempty"`
}

// Anomaly z-scoreで検出した急騰・急落
type Anomaly struct {
	Date   string  `json:"date"`
	Type   string  `json:"type"` // 급등 / 급락
	Price  float64 `json:"price"`
	ZScore float64 `json:"z_score"`
}

// SummaryStats 系列から算出する要約統計（リクエストごとに再計算）
type SummaryStats struct {
	LatestPrice   *float64 `json:"latest_price"`
	LatestVolume  *float64 `json:"latest_volume"`
	WoWPricePct   *float64 `json:"wow_price_pct"`
	WoWVolumePct  *float64 `json:"wow_volume_pct"`
	MoMPricePct   *float64 `json:"mom_price_pct"`
	Volatility14d *float64 `json:"volatility_14d"`
	DataPoints    int      `json:"data_points"`
	MissingRate   float64  `json:"missing_rate"`

	// 週次MoMが行数不足で先頭行と比較した場合にtrue
	MoMFromWindowStart bool `json:"mom_from_window_start,omitempty"`

	AnomalyCount   int       `json:"anomaly_count,omitempty"`
	Anomalies      []Anomaly `json:"anomalies,omitempty"`
	TrendDirection string    `json:"trend_direction,omitempty"` // 상승 / 하락 / 보합
}

// MarketStat 市場別の指標
type MarketStat struct {
	MarketName     string   `json:"market_name"`
	AvgPrice       *float64 `json:"avg_price,omitempty"`
	TotalVolume    *float64 `json:"total_volume,omitempty"`
	PriceChangePct *float64 `json:"price_change_pct,omitempty"`
	FirstPrice     *float64 `json:"first_price,omitempty"`
	LastPrice      *float64 `json:"last_price,omitempty"`
}

// Dimensions 品目・品種・市場の一覧とデータ期間
type Dimensions struct {
	ItemNames    []string `json:"item_names"`
	VarietyNames []string `json:"variety_names"`
	MarketNames  []string `json:"market_names"`
	DateMin      *string  `json:"date_min"`
	DateMax      *string  `json:"date_max"`
}

// Float64Ptr はfloat64のポインタを返します。
func Float64Ptr(v float64) *float64 {
	return &v
}
