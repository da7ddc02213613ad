package services

import (
	"fmt"
	"sort"
	"time"

	"agri-price-api/pkg/models"
)

// aggRow は集計後の1行です。
type aggRow struct {
	Date   time.Time
	Market string
	Price  *float64 // 平均
	Volume *float64 // 合計
	Amount *float64 // 合計
}

// filterOptions はapplyFiltersの挙動を切り替えます。
type filterOptions struct {
	ignoreMarket bool // 市場で絞り込まない（市場比較・intent）
}

// applyFilters は品目 → 品種 → 市場 → 期間の順に絞り込みます。
// 絞り込みで0件になった段階は、確定済みの品目（＋品種）で得られる最も広い集合に戻して警告します。
// fには実際に適用された品種・市場が反映されます。元のテーブルは変更しません。
func applyFilters(t *Table, f *models.Filter, opts filterOptions) ([]*PriceRecord, []string) {
	var warnings []string
	all := t.rows()

	// (1) 品目
	byItem := selectRows(all, func(r *PriceRecord) bool { return r.ItemName == f.ItemName })
	if len(byItem) == 0 {
		warnings = append(warnings, fmt.Sprintf("품목 '%s'에 해당하는 데이터가 없습니다.", f.ItemName))
		return nil, warnings
	}
	confirmed := byItem
	result := byItem

	// (2) 品種
	if f.VarietyName != nil {
		variety := *f.VarietyName
		byVariety := selectRows(byItem, func(r *PriceRecord) bool { return r.VarietyName == variety })
		if len(byVariety) == 0 {
			warnings = append(warnings, fmt.Sprintf("품종 '%s'에 해당하는 데이터가 없어 전체로 대체합니다.", variety))
			f.VarietyName = nil
		} else {
			confirmed = byVariety
			result = byVariety
		}
	}

	// (3) 市場（市場比較では無視）
	if f.MarketName != nil && !opts.ignoreMarket && f.ChartType != models.ChartCompareMarkets {
		market := *f.MarketName
		byMarket := selectRows(result, func(r *PriceRecord) bool { return r.MarketName == market })
		if len(byMarket) == 0 {
			warnings = append(warnings, fmt.Sprintf("시장 '%s'에 해당하는 데이터가 없어 %s으로 대체합니다.", market, models.DefaultMarketName))
			result = confirmed
			f.MarketName = models.StringPtr(models.DefaultMarketName)
		} else {
			result = byMarket
		}
	}

	// (4) 期間（両端を含む。片側のみでも可）
	result = applyDateBounds(result, f)
	if len(result) == 0 {
		warnings = append(warnings, "지정된 기간에 해당하는 데이터가 없습니다.")
	}
	return result, warnings
}

// applyDateBounds は期間で絞り込みます。期間が指定されている場合、日付のない行は除外されます。
func applyDateBounds(rows []*PriceRecord, f *models.Filter) []*PriceRecord {
	from, to := f.DateBounds()
	if from == nil && to == nil {
		return rows
	}
	return selectRows(rows, func(r *PriceRecord) bool {
		d, ok := r.Date()
		if !ok {
			return false
		}
		if from != nil && d.Before(*from) {
			return false
		}
		if to != nil && d.After(*to) {
			return false
		}
		return true
	})
}

func selectRows(rows []*PriceRecord, keep func(*PriceRecord) bool) []*PriceRecord {
	out := make([]*PriceRecord, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func inMarkets(markets []string) func(*PriceRecord) bool {
	set := make(map[string]bool, len(markets))
	for _, m := range markets {
		set[m] = true
	}
	return func(r *PriceRecord) bool { return set[r.MarketName] }
}

// weekStart は日付を含む週の月曜日を返します。
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return time.Date(d.Year(), d.Month(), d.Day()-offset, 0, 0, 0, 0, d.Location())
}

// aggregateByGranularity は週次（週の月曜日）または代表日ごとに集計します。
// 価格は平均、数量・金額は合計です（有効値がない場合はnil）。日付のない行は集計しません。
// 結果は日付、次に市場名の昇順です。
func aggregateByGranularity(rows []*PriceRecord, granularity models.Granularity, byMarket bool) []aggRow {
	type key struct {
		date   time.Time
		market string
	}
	type acc struct {
		priceSum, volSum, amtSum float64
		priceN, volN, amtN       int
	}

	buckets := map[key]*acc{}
	for _, r := range rows {
		d, ok := r.Date()
		if !ok {
			continue
		}
		if granularity == models.GranularityWeekly {
			d = weekStart(d)
		}
		k := key{date: d}
		if byMarket {
			k.market = r.MarketName
		}
		a := buckets[k]
		if a == nil {
			a = &acc{}
			buckets[k] = a
		}
		if r.PriceKg != nil {
			a.priceSum += *r.PriceKg
			a.priceN++
		}
		if r.VolumeKg != nil {
			a.volSum += *r.VolumeKg
			a.volN++
		}
		if r.AmountKRW != nil {
			a.amtSum += *r.AmountKRW
			a.amtN++
		}
	}

	out := make([]aggRow, 0, len(buckets))
	for k, a := range buckets {
		row := aggRow{Date: k.date, Market: k.market}
		if a.priceN > 0 {
			row.Price = models.Float64Ptr(a.priceSum / float64(a.priceN))
		}
		if a.volN > 0 {
			row.Volume = models.Float64Ptr(a.volSum)
		}
		if a.amtN > 0 {
			row.Amount = models.Float64Ptr(a.amtSum)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Market < out[j].Market
	})
	return out
}

// toSeries は集計行を出力用の系列に変換します（小数2桁に丸め）。
func toSeries(rows []aggRow, withMarket bool) []models.SeriesPoint {
	out := make([]models.SeriesPoint, len(rows))
	for i, r := range rows {
		p := models.SeriesPoint{
			Date:   r.Date.Format(models.DateLayout),
			Price:  roundPtr(r.Price, 2),
			Volume: roundPtr(r.Volume, 2),
		}
		if withMarket {
			p.MarketName = models.StringPtr(r.Market)
		}
		out[i] = p
	}
	return out
}

// marketTotal は市場ごとの集計値です。
type marketTotal struct {
	market string
	value  *float64
}

// rankMarkets は市場ごとの値で並べ替えます。nilは常に末尾、同値は市場名順を保ちます。
func rankMarkets(totals []marketTotal, ascending bool) []marketTotal {
	sort.SliceStable(totals, func(i, j int) bool {
		a, b := totals[i].value, totals[j].value
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		if ascending {
			return *a < *b
		}
		return *a > *b
	})
	return totals
}

// totalsByMarket は行を市場ごとにまとめ、市場名順で集計値を返します。
func totalsByMarket(rows []*PriceRecord, value func(*PriceRecord) *float64, mean bool) []marketTotal {
	type acc struct {
		sum float64
		n   int
	}
	accs := map[string]*acc{}
	var names []string
	for _, r := range rows {
		a := accs[r.MarketName]
		if a == nil {
			a = &acc{}
			accs[r.MarketName] = a
			names = append(names, r.MarketName)
		}
		if v := value(r); v != nil {
			a.sum += *v
			a.n++
		}
	}
	sort.Strings(names)

	out := make([]marketTotal, 0, len(names))
	for _, name := range names {
		a := accs[name]
		mt := marketTotal{market: name}
		switch {
		case mean && a.n > 0:
			mt.value = models.Float64Ptr(a.sum / float64(a.n))
		case !mean:
			// 合計は欠損を0として扱う
			mt.value = models.Float64Ptr(a.sum)
		}
		out = append(out, mt)
	}
	return out
}

func topMarketNames(ranked []marketTotal, n int) []string {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, m := range ranked[:n] {
		out = append(out, m.market)
	}
	return out
}
