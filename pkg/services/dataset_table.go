package services

import (
	"time"
)

// 元データの列名（韓国語）→ 正規化した列名
var columnMapping = map[string]string{
	"시점":                                "period_raw",
	"시장코드":                              "market_code",
	"시장명":                               "market_name",
	"품목코드":                              "item_code",
	"품목명":                               "item_name",
	"품종코드":                              "variety_code",
	"품종명":                               "variety_name",
	"총반입량(kg)":                          "volume_kg",
	"총거래금액(원)":                          "amount_krw",
	"평균가(원/kg)":                         "price_kg",
	"고가(20%) 평균가":                       "price_high_20",
	"중가(60%) 평균가":                       "price_mid_60",
	"중가(60%) 평균가 ":                      "price_mid_60",
	"저가(20%) 평균가":                       "price_low_20",
	"중간가(원/kg)":                         "price_median_kg",
	"최저가(원/kg)":                         "price_min_kg",
	"최고가(원/kg)":                         "price_max_kg",
	"경매 건수":                             "auction_cnt",
	"전순 평균가격(원) PreVious SOON":          "baseline_prev_period",
	"전달 평균가격(원) PreVious MMonth":        "baseline_prev_month",
	"전년 평균가격(원) PreVious YeaR":          "baseline_prev_year",
	"평년 평균가격(원) Common Year SOON":       "baseline_common_year",
	"연도":                                "year",
}

// 数値として扱う列。価格・数量・金額以外は補助値としてAuxに入る
var numericColumns = []string{
	"volume_kg", "amount_krw", "price_kg",
	"price_high_20", "price_mid_60", "price_low_20",
	"price_median_kg", "price_min_kg", "price_max_kg",
	"auction_cnt", "baseline_prev_period", "baseline_prev_month",
	"baseline_prev_year", "baseline_common_year",
}

// PriceRecord 元データの1行
type PriceRecord struct {
	PeriodRaw   string
	MarketCode  string
	MarketName  string
	ItemCode    string
	ItemName    string
	VarietyCode string
	VarietyName string
	Year        string

	PriceKg   *float64
	VolumeKg  *float64
	AmountKRW *float64
	Aux       map[string]*float64 // 高値・中値・前旬平均など

	Period *PeriodRange      // 期間トークンが解析できなかった場合はnil
	Extra  map[string]string // 未知の列はそのまま保持
}

// Date は代表日を返します。期間不明の場合はfalseです。
func (r *PriceRecord) Date() (time.Time, bool) {
	if r.Period == nil {
		return time.Time{}, false
	}
	return r.Period.Date, true
}

// Table はプロセス内で共有する読み取り専用のデータセットです。
type Table struct {
	Records       []PriceRecord
	Columns       []string
	ParseFailures int
	Encoding      string
	Source        string
	LoadedAt      time.Time

	columnSet map[string]bool
}

// NewTable は列集合を構築したTableを返します。
func NewTable(columns []string, records []PriceRecord) *Table {
	t := &Table{
		Records:   records,
		Columns:   columns,
		LoadedAt:  time.Now(),
		columnSet: make(map[string]bool, len(columns)),
	}
	for _, c := range columns {
		t.columnSet[c] = true
	}
	return t
}

// HasColumn は正規化後の列が存在するかを返します。
func (t *Table) HasColumn(name string) bool {
	return t.columnSet[name]
}

// Len 行数
func (t *Table) Len() int {
	return len(t.Records)
}

// rows は全行へのポインタのビューを返します（元の行は変更しない）。
func (t *Table) rows() []*PriceRecord {
	out := make([]*PriceRecord, len(t.Records))
	for i := range t.Records {
		out[i] = &t.Records[i]
	}
	return out
}
