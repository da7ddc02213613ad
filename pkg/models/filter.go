package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultMarketName は市場未指定・未解決時に使う全国集計の市場名
const DefaultMarketName = "전국도매시장"

// DateLayout はフィルタと系列で使う日付フォーマット
const DateLayout = "2006-01-02"

// ChartType チャート種別
type ChartType string

const (
	ChartTrend          ChartType = "trend"
	ChartCompareMarkets ChartType = "compare_markets"
	ChartVolumePrice    ChartType = "volume_price"
	ChartVolatility     ChartType = "volatility"
)

// Granularity 集計粒度
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
)

// Intent 分析意図。normal以外はQuery Engine側でchart_typeを上書きする
type Intent string

const (
	IntentNormal          Intent = "normal"
	IntentHighAvgPrice    Intent = "high_avg_price"
	IntentHighPriceChange Intent = "high_price_change"
	IntentHighVolatility  Intent = "high_volatility"
)

// Filter は解決済みの問い合わせ条件です。
type Filter struct {
	ItemName    string      `json:"item_name" validate:"required"`
	VarietyName *string     `json:"variety_name"`
	MarketName  *string     `json:"market_name"`
	DateFrom    *string     `json:"date_from"`
	DateTo      *string     `json:"date_to"`
	ChartType   ChartType   `json:"chart_type" validate:"oneof=trend compare_markets volume_price volatility"`
	Metrics     []string    `json:"metrics" validate:"dive,oneof=price volume"`
	Granularity Granularity `json:"granularity" validate:"oneof=daily weekly"`
	TopNMarkets int         `json:"top_n_markets" validate:"gte=1"`
	Explain     bool        `json:"explain"`
	Intent      Intent      `json:"intent" validate:"oneof=normal high_avg_price high_price_change high_volatility"`
	WindowDays  int         `json:"window_days" validate:"gte=1"`
}

var filterValidator = validator.New()

// DefaultFilter はデフォルト値を埋めたFilterを返します。
func DefaultFilter() Filter {
	return Filter{
		ChartType:   ChartTrend,
		Metrics:     []string{"price", "volume"},
		Granularity: GranularityWeekly,
		TopNMarkets: 5,
		Explain:     true,
		Intent:      IntentNormal,
		WindowDays:  30,
	}
}

// DecodeFilter はJSONをデフォルト値の上にデコードし、スキーマ検証します。
// 不正な形式の日付は未指定として扱います。
func DecodeFilter(raw []byte) (Filter, error) {
	f := DefaultFilter()
	if len(bytes.TrimSpace(raw)) == 0 {
		return f, &SchemaValidationError{Message: "filters が空です"}
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, &SchemaValidationError{Message: fmt.Sprintf("フィルタのJSON解析に失敗: %v", err)}
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// Normalize は日付の形式を確認し、空文字列の任意項目をnilに揃えます。
func (f *Filter) Normalize() {
	f.DateFrom = normalizeISODate(f.DateFrom)
	f.DateTo = normalizeISODate(f.DateTo)
	f.VarietyName = nilIfEmpty(f.VarietyName)
	f.MarketName = nilIfEmpty(f.MarketName)
	if len(f.Metrics) == 0 {
		f.Metrics = []string{"price", "volume"}
	}
}

// Validate はvalidatorタグに従ってFilterを検証します。
func (f Filter) Validate() error {
	if err := filterValidator.Struct(f); err != nil {
		return &SchemaValidationError{Message: err.Error(), Err: err}
	}
	return nil
}

// Market は市場名を返します。未指定時は全国集計の市場名です。
func (f Filter) Market() string {
	if f.MarketName == nil {
		return DefaultMarketName
	}
	return *f.MarketName
}

// Variety は品種名を返します。未指定時は空文字列です。
func (f Filter) Variety() string {
	if f.VarietyName == nil {
		return ""
	}
	return *f.VarietyName
}

// DateBounds はdate_from/date_toをtime.Timeに変換します。
func (f Filter) DateBounds() (from, to *time.Time) {
	if f.DateFrom != nil {
		if t, err := time.Parse(DateLayout, *f.DateFrom); err == nil {
			from = &t
		}
	}
	if f.DateTo != nil {
		if t, err := time.Parse(DateLayout, *f.DateTo); err == nil {
			to = &t
		}
	}
	return from, to
}

// Clone はスライスとポインタを複製したコピーを返します。
func (f Filter) Clone() Filter {
	c := f
	c.VarietyName = copyString(f.VarietyName)
	c.MarketName = copyString(f.MarketName)
	c.DateFrom = copyString(f.DateFrom)
	c.DateTo = copyString(f.DateTo)
	c.Metrics = append([]string(nil), f.Metrics...)
	return c
}

// StringPtr は文字列のポインタを返します。
func StringPtr(s string) *string {
	return &s
}

func normalizeISODate(v *string) *string {
	if v == nil || len(*v) != len(DateLayout) {
		return nil
	}
	if _, err := time.Parse(DateLayout, *v); err != nil {
		return nil
	}
	return v
}

func nilIfEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
