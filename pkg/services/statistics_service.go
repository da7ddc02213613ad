package services

// 要約統計は以下のファイルに分かれています：
//
// - statistics_service.go: SummaryCalculator構造体
// - statistics_summary.go: 最新値・WoW・MoM・ボラティリティ・欠損率
// - statistics_anomaly.go: z-scoreによる急騰・急落検知とトレンド方向（Enrich）
// - statistics_math.go: 平均・標本標準偏差・ローリング標準偏差・変化率・丸め
//
// 全ての計算は系列を入力とする純粋関数で、リクエストごとに再計算されます。

// 異常検知の既定値
const (
	DefaultAnomalyThreshold = 2.0
	minAnomalyPoints        = 5
	maxDisplayedAnomalies   = 3
	trendDeadband           = 0.05
)

// SummaryCalculator はクエリ結果から要約統計を計算します。
type SummaryCalculator struct {
	anomalyThreshold float64
}

// NewSummaryCalculator は新しいSummaryCalculatorを生成します。
func NewSummaryCalculator() *SummaryCalculator {
	return &SummaryCalculator{anomalyThreshold: DefaultAnomalyThreshold}
}
