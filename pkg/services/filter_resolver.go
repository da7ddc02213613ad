package services

import (
	"fmt"
	"strings"

	"agri-price-api/pkg/models"
)

// FilterResolver はフィルタを次元索引と照合して補正し、既定値を補います。
type FilterResolver struct {
	dataset   *DatasetContext
	threshold float64
}

// NewFilterResolver は新しいFilterResolverを生成します。
func NewFilterResolver(dataset *DatasetContext) *FilterResolver {
	return &FilterResolver{dataset: dataset, threshold: DefaultMatchThreshold}
}

// Correct は自然言語由来のフィルタを補正します。
// 品目が見つからない場合も警告を出した上で最上位の候補にフォールバックするため、
// 結果のフィルタは必ず品目名を持ちます。
func (r *FilterResolver) Correct(f models.Filter) (models.Filter, []string, error) {
	return r.correct(f, true)
}

// CorrectDirect は直接指定されたフィルタを補正します。
// 品目が見つからない場合は入力値のまま残し、後段でNO_DATAになります。
func (r *FilterResolver) CorrectDirect(f models.Filter) (models.Filter, []string, error) {
	return r.correct(f, false)
}

func (r *FilterResolver) correct(f models.Filter, itemFallback bool) (models.Filter, []string, error) {
	idx, err := r.dataset.Index()
	if err != nil {
		return f, nil, err
	}
	out := f.Clone()
	var warnings []string

	// 品目（必須）
	item := FindBestMatch(f.ItemName, idx.ItemNames, r.threshold)
	switch {
	case item.Found:
		if item.Best != f.ItemName {
			warnings = append(warnings, fmt.Sprintf("품목명 '%s'을 '%s'(으)로 보정했습니다. 후보: %s",
				f.ItemName, item.Best, formatCandidates(item.Candidates)))
		}
		out.ItemName = item.Best
	default:
		warnings = append(warnings, fmt.Sprintf("품목명 '%s'을 찾을 수 없습니다. 후보: %s",
			f.ItemName, formatCandidates(item.Candidates)))
		if itemFallback && len(item.Candidates) > 0 {
			out.ItemName = item.Candidates[0]
		}
	}

	// 品種（任意）: 解決済み品目で観測された品種のみと照合
	out.VarietyName = nil
	if f.VarietyName != nil {
		if varieties := idx.VarietiesOf(out.ItemName); len(varieties) > 0 {
			v := FindBestMatch(*f.VarietyName, varieties, r.threshold)
			if v.Found {
				if v.Best != *f.VarietyName {
					warnings = append(warnings, fmt.Sprintf("품종명 '%s'을 '%s'(으)로 보정했습니다.", *f.VarietyName, v.Best))
				}
				out.VarietyName = models.StringPtr(v.Best)
			} else {
				warnings = append(warnings, fmt.Sprintf("품종명 '%s'을 찾을 수 없어 전체 집계로 대체합니다. 후보: %s",
					*f.VarietyName, formatCandidates(v.Candidates)))
			}
		}
	}

	// 市場（任意）: 未指定・未解決は全国集計
	out.MarketName = models.StringPtr(models.DefaultMarketName)
	if f.MarketName != nil && *f.MarketName != models.DefaultMarketName {
		m := FindBestMatch(*f.MarketName, idx.MarketNames, r.threshold)
		if m.Found {
			if m.Best != *f.MarketName {
				warnings = append(warnings, fmt.Sprintf("시장명 '%s'을 '%s'(으)로 보정했습니다.", *f.MarketName, m.Best))
			}
			out.MarketName = models.StringPtr(m.Best)
		} else {
			warnings = append(warnings, fmt.Sprintf("시장명 '%s'을 찾을 수 없어 %s으로 대체합니다.",
				*f.MarketName, models.DefaultMarketName))
		}
	}

	return out, warnings, nil
}

// BackfillDates はdate_from/date_toのどちらかが未指定なら、
// 最新日からwindow_days日前までの範囲で補い警告を返します。
func (r *FilterResolver) BackfillDates(f *models.Filter) []string {
	if f.DateFrom != nil && f.DateTo != nil {
		return nil
	}
	idx, err := r.dataset.Index()
	if err != nil {
		return nil
	}
	days := f.WindowDays
	if days <= 0 {
		days = 90
	}
	from, to := idx.DefaultDateRange(days)
	if f.DateFrom == nil {
		f.DateFrom = from
	}
	if f.DateTo == nil {
		f.DateTo = to
	}
	return []string{"기간 미지정으로 기본값을 적용했습니다."}
}

func formatCandidates(c []string) string {
	return "[" + strings.Join(c, ", ") + "]"
}
