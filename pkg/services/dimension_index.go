package services

import (
	"sort"
	"time"

	"agri-price-api/pkg/models"
)

// DimensionIndex はデータセットから導出した品目・品種・市場の一覧です。
// テーブルと同じライフサイクルで再構築されます。
type DimensionIndex struct {
	ItemNames    []string
	VarietyNames []string
	MarketNames  []string

	varietiesByItem map[string][]string
	minDate         *time.Time
	maxDate         *time.Time
}

// BuildDimensionIndex はテーブルを1回走査して索引を構築します。
func BuildDimensionIndex(t *Table) *DimensionIndex {
	items := map[string]bool{}
	varieties := map[string]bool{}
	markets := map[string]bool{}
	byItem := map[string][]string{}
	seenPair := map[[2]string]bool{}

	idx := &DimensionIndex{}
	for i := range t.Records {
		r := &t.Records[i]
		if r.ItemName != "" {
			items[r.ItemName] = true
		}
		if r.VarietyName != "" {
			varieties[r.VarietyName] = true
			if r.ItemName != "" {
				key := [2]string{r.ItemName, r.VarietyName}
				if !seenPair[key] {
					seenPair[key] = true
					byItem[r.ItemName] = append(byItem[r.ItemName], r.VarietyName)
				}
			}
		}
		if r.MarketName != "" {
			markets[r.MarketName] = true
		}
		if d, ok := r.Date(); ok {
			if idx.minDate == nil || d.Before(*idx.minDate) {
				dd := d
				idx.minDate = &dd
			}
			if idx.maxDate == nil || d.After(*idx.maxDate) {
				dd := d
				idx.maxDate = &dd
			}
		}
	}

	idx.ItemNames = sortedKeys(items)
	idx.VarietyNames = sortedKeys(varieties)
	idx.MarketNames = sortedKeys(markets)
	idx.varietiesByItem = byItem
	return idx
}

// VarietiesOf は品目に出現した品種を出現順で返します。
func (d *DimensionIndex) VarietiesOf(item string) []string {
	return d.varietiesByItem[item]
}

// DateRange はデータの最小・最大代表日を返します。日付がなければnilです。
func (d *DimensionIndex) DateRange() (lo, hi *time.Time) {
	return d.minDate, d.maxDate
}

// MaxDate は最新の代表日。日付がなければfalse
func (d *DimensionIndex) MaxDate() (time.Time, bool) {
	if d.maxDate == nil {
		return time.Time{}, false
	}
	return *d.maxDate, true
}

// DefaultDateRange は最新日からdays日前までの範囲（YYYY-MM-DD）を返します。
func (d *DimensionIndex) DefaultDateRange(days int) (from, to *string) {
	if d.maxDate == nil {
		return nil, nil
	}
	f := d.maxDate.AddDate(0, 0, -days).Format(models.DateLayout)
	t := d.maxDate.Format(models.DateLayout)
	return &f, &t
}

// Dimensions はAPIレスポンス用の一覧を返します。itemを指定するとその品目の品種のみです。
func (d *DimensionIndex) Dimensions(item string) models.Dimensions {
	out := models.Dimensions{
		ItemNames:    d.ItemNames,
		VarietyNames: d.VarietyNames,
		MarketNames:  d.MarketNames,
	}
	if item != "" {
		out.VarietyNames = d.VarietiesOf(item)
		if out.VarietyNames == nil {
			out.VarietyNames = []string{}
		}
	}
	if d.minDate != nil {
		out.DateMin = models.StringPtr(d.minDate.Format(models.DateLayout))
	}
	if d.maxDate != nil {
		out.DateMax = models.StringPtr(d.maxDate.Format(models.DateLayout))
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return "None"
	}
	return t.Format(models.DateLayout)
}
