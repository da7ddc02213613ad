package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"agri-price-api/pkg/models"
)

var testColumns = []string{
	"period_raw", "market_name", "item_name", "variety_name",
	"volume_kg", "amount_krw", "price_kg",
}

// testRecord は1行分のPriceRecordを作ります。
func testRecord(t *testing.T, period, market, item, variety string, price, volume float64) PriceRecord {
	t.Helper()
	p, err := ParsePeriod(period)
	require.NoError(t, err)
	return PriceRecord{
		PeriodRaw:   period,
		MarketName:  market,
		ItemName:    item,
		VarietyName: variety,
		PriceKg:     models.Float64Ptr(price),
		VolumeKg:    models.Float64Ptr(volume),
		AmountKRW:   models.Float64Ptr(price * volume),
		Period:      &p,
	}
}

// testTable は2018年の감자（3市場・全旬）と양파（全国のみ・上半期）のテーブルです。
//
//	전국도매시장: 1000 + 月*10 + 旬*2、数量 5000
//	서울가락:     1200 + 月*20、数量 3000（金額最大）
//	부산엄궁:      900 + 月*5、数量 1000
func testTable(t *testing.T) *Table {
	t.Helper()
	thirds := []string{"상순", "중순", "하순"}
	var recs []PriceRecord
	for m := 1; m <= 12; m++ {
		for i, th := range thirds {
			period := fmt.Sprintf("2018%02d%s", m, th)
			recs = append(recs,
				testRecord(t, period, "전국도매시장", "감자", "수미", float64(1000+m*10+i*2), 5000),
				testRecord(t, period, "서울가락", "감자", "수미", float64(1200+m*20), 3000),
				testRecord(t, period, "부산엄궁", "감자", "대지", float64(900+m*5), 1000),
			)
			if m <= 6 {
				recs = append(recs, testRecord(t, period, "전국도매시장", "양파", "기타", float64(500+m), 8000))
			}
		}
	}
	return NewTable(testColumns, recs)
}

func testDataset(t *testing.T) *DatasetContext {
	t.Helper()
	return NewDatasetContextFromTable(testTable(t))
}

// testFilter はデフォルト値に期間を付けた감자のフィルタです。
func testFilter() models.Filter {
	f := models.DefaultFilter()
	f.ItemName = "감자"
	f.MarketName = models.StringPtr(models.DefaultMarketName)
	f.DateFrom = models.StringPtr("2018-01-01")
	f.DateTo = models.StringPtr("2018-12-31")
	return f
}

// pricePoints は価格だけを持つ日次系列を作ります。
func pricePoints(prices ...float64) []models.SeriesPoint {
	out := make([]models.SeriesPoint, len(prices))
	for i, p := range prices {
		out[i] = models.SeriesPoint{
			Date:  fmt.Sprintf("2018-01-%02d", i+1),
			Price: models.Float64Ptr(p),
		}
	}
	return out
}

// stubLoader はテスト用のTableLoaderです。
type stubLoader struct {
	table *Table
	err   error
	calls int
}

func (s *stubLoader) Load() (*Table, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.table, nil
}
