package models

// ClarifyQuestion 確認質問
type ClarifyQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Default  *string  `json:"default"`
}

// Clarification 曖昧な質問に対する下書きフィルタと確認質問（最大2件）
type Clarification struct {
	DraftFilters map[string]interface{} `json:"draft_filters"`
	Questions    []ClarifyQuestion      `json:"questions"`
}

// InterpretResult は自然言語解釈の結果です。FilterResultかClarifyResultのどちらかです。
type InterpretResult interface {
	ResultWarnings() []string
	isInterpretResult()
}

// FilterResult 確定したフィルタ
type FilterResult struct {
	Filter   Filter
	Warnings []string
}

// ClarifyResult 確認が必要な場合の結果
type ClarifyResult struct {
	Clarification Clarification
	Warnings      []string
}

func (r *FilterResult) ResultWarnings() []string  { return r.Warnings }
func (r *ClarifyResult) ResultWarnings() []string { return r.Warnings }
func (*FilterResult) isInterpretResult()          {}
func (*ClarifyResult) isInterpretResult()         {}

// QueryRequest /api/v1/query のリクエストボディ
type QueryRequest struct {
	Question       string            `json:"question"`
	Filters        RawFilters        `json:"filters"`
	ClarifyAnswers map[string]string `json:"clarify_answers"`
}

// RawFilters は検証前のフィルタJSONです。
type RawFilters []byte

// UnmarshalJSON はnullを未指定として扱います。
func (r *RawFilters) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// QueryResponse /api/v1/query のレスポンス
type QueryResponse struct {
	Type          string         `json:"type"` // result / clarify
	Filters       *Filter        `json:"filters"`
	Series        []SeriesPoint  `json:"series"`
	Summary       *SummaryStats  `json:"summary"`
	Narrative     string         `json:"narrative"`
	Warnings      []string       `json:"warnings"`
	Clarification *Clarification `json:"clarification"`
	RequestID     string         `json:"request_id"`
}

// ErrorBody エラーレスポンスの中身
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	Warnings  []string  `json:"warnings,omitempty"`
	RequestID string    `json:"request_id"`
}
