package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"text/template"

	"agri-price-api/pkg/models"
)

// 確認質問のID
const (
	ClarifyExpensiveMeaning = "expensive_meaning"
	ClarifyRecentWindow     = "recent_window"
)

// プロンプトに埋め込む次元リストの上限
const (
	promptItemLimit    = 30
	promptVarietyLimit = 50
	promptMarketLimit  = 20
)

var (
	codeFenceJSON = regexp.MustCompile("```json\\s*")
	codeFence     = regexp.MustCompile("```\\s*")
)

// recent_window の回答 → window_days
var recentWindowDays = map[string]int{"30d": 30, "90d": 90, "180d": 180}

// NLUPrompts 自然言語解釈に使うプロンプトテンプレート（text/template形式）
type NLUPrompts struct {
	System string
	User   string
	Retry  string
}

// Interpreter は自然言語の質問をフィルタまたは確認要求に変換します。
type Interpreter struct {
	dataset    *DatasetContext
	resolver   *FilterResolver
	completer  Completer
	maxRetries int

	system *template.Template
	user   *template.Template
	retry  *template.Template
}

// NewInterpreter は新しいInterpreterを生成します。completerがnilの場合はルールベースのみで動作します。
func NewInterpreter(dataset *DatasetContext, resolver *FilterResolver, completer Completer, prompts NLUPrompts, maxRetries int) (*Interpreter, error) {
	system, err := template.New("nlu.system").Parse(prompts.System)
	if err != nil {
		return nil, fmt.Errorf("NLUシステムプロンプトのパースに失敗: %w", err)
	}
	user, err := template.New("nlu.user").Parse(prompts.User)
	if err != nil {
		return nil, fmt.Errorf("NLUユーザープロンプトのパースに失敗: %w", err)
	}
	retry, err := template.New("nlu.retry").Parse(prompts.Retry)
	if err != nil {
		return nil, fmt.Errorf("NLUリトライプロンプトのパースに失敗: %w", err)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Interpreter{
		dataset:    dataset,
		resolver:   resolver,
		completer:  completer,
		maxRetries: maxRetries,
		system:     system,
		user:       user,
		retry:      retry,
	}, nil
}

// nluResponse LLMが返すJSONの形
type nluResponse struct {
	Type         string                   `json:"type"`
	Filters      json.RawMessage          `json:"filters"`
	DraftFilters map[string]interface{}   `json:"draft_filters"`
	Questions    []models.ClarifyQuestion `json:"questions"`
	Warnings     []string                 `json:"warnings"`
}

// Interpret は質問（と前回の確認への回答）を解釈します。
// LLMの失敗は呼び出し元に返さず、ルールベース抽出に警告付きでフォールバックします。
func (in *Interpreter) Interpret(ctx context.Context, question string, answers map[string]string) (models.InterpretResult, error) {
	idx, err := in.dataset.Index()
	if err != nil {
		return nil, err
	}

	if len(answers) > 0 {
		return in.interpretWithAnswers(question, answers, idx)
	}

	if in.completer == nil {
		if questions := DetectAmbiguity(question); len(questions) > 0 {
			draft, warnings := ruleBasedExtract(question, idx, WarnLLMNotConfigured)
			log.Printf("🧠 [nlu] あいまいな質問のため確認を要求します（%d件）", len(questions))
			return &models.ClarifyResult{
				Clarification: models.Clarification{DraftFilters: filterToMap(draft), Questions: questions},
				Warnings:      warnings,
			}, nil
		}
		return in.ruleFallback(question, idx, WarnLLMNotConfigured)
	}

	system, err := in.renderSystem(idx)
	if err != nil {
		return nil, err
	}

	var lastErr string
	for attempt := 0; attempt <= in.maxRetries; attempt++ {
		prompt, err := in.renderUser(system, question, attempt, lastErr)
		if err != nil {
			return nil, err
		}

		text, err := in.completer.Complete(ctx, prompt)
		if err != nil {
			lastErr = err.Error()
			log.Printf("⚠️ [nlu] LLM呼び出しに失敗 (attempt=%d): %v", attempt+1, err)
			continue
		}

		result, err := in.decodeResponse(text)
		if err != nil {
			lastErr = err.Error()
			log.Printf("⚠️ [nlu] LLM応答が不正 (attempt=%d): %v", attempt+1, err)
			continue
		}
		return result, nil
	}

	log.Printf("🧠 [nlu] LLM解釈に失敗したためルールベース抽出を使用します: %s", lastErr)
	return in.ruleFallback(question, idx, WarnLLMParseFailed)
}

// decodeResponse はLLMの出力を検証して結果に変換します。形式・スキーマ違反はリトライ対象のエラーです。
func (in *Interpreter) decodeResponse(text string) (models.InterpretResult, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, errors.New("JSON 파싱 실패")
	}

	var resp nluResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("JSON 파싱 실패: %w", err)
	}

	switch resp.Type {
	case "filters":
		f, err := models.DecodeFilter(resp.Filters)
		if err != nil {
			return nil, err
		}
		corrected, warnings, err := in.resolver.Correct(f)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, in.resolver.BackfillDates(&corrected)...)
		warnings = append(warnings, resp.Warnings...)
		return &models.FilterResult{Filter: corrected, Warnings: warnings}, nil

	case "clarify":
		questions := resp.Questions
		if len(questions) > 2 {
			questions = questions[:2]
		}
		draft := resp.DraftFilters
		if draft == nil {
			draft = map[string]interface{}{}
		}
		return &models.ClarifyResult{
			Clarification: models.Clarification{DraftFilters: draft, Questions: questions},
			Warnings:      resp.Warnings,
		}, nil
	}
	return nil, fmt.Errorf("Unknown response type: %s", resp.Type)
}

// interpretWithAnswers はLLMを呼ばず、ルールベース抽出に確認への回答を重ねます。
func (in *Interpreter) interpretWithAnswers(question string, answers map[string]string, idx *DimensionIndex) (models.InterpretResult, error) {
	f, warnings := ruleBasedExtract(question, idx, WarnClarifyApplied)

	if v, ok := answers[ClarifyExpensiveMeaning]; ok {
		switch intent := models.Intent(v); intent {
		case models.IntentHighAvgPrice, models.IntentHighPriceChange, models.IntentHighVolatility:
			f.Intent = intent
		default:
			f.Intent = models.IntentNormal
		}
	}

	if v, ok := answers[ClarifyRecentWindow]; ok {
		days, known := recentWindowDays[v]
		if !known {
			days = 30
		}
		f.WindowDays = days
		today := referenceDate(idx)
		from := today.AddDate(0, 0, -days).Format(models.DateLayout)
		to := today.Format(models.DateLayout)
		f.DateFrom, f.DateTo = &from, &to
	}

	corrected, corrWarnings, err := in.resolver.Correct(f)
	if err != nil {
		return nil, err
	}
	return &models.FilterResult{Filter: corrected, Warnings: append(warnings, corrWarnings...)}, nil
}

func (in *Interpreter) ruleFallback(question string, idx *DimensionIndex, reason string) (models.InterpretResult, error) {
	f, warnings := ruleBasedExtract(question, idx, reason)
	corrected, corrWarnings, err := in.resolver.Correct(f)
	if err != nil {
		return nil, err
	}
	return &models.FilterResult{Filter: corrected, Warnings: append(warnings, corrWarnings...)}, nil
}

func (in *Interpreter) renderSystem(idx *DimensionIndex) (string, error) {
	lo, hi := idx.DateRange()
	dateRange := fmt.Sprintf("%s ~ %s", formatDatePtr(lo), formatDatePtr(hi))

	data := map[string]string{
		"ItemNames":    strings.Join(head(idx.ItemNames, promptItemLimit), ", "),
		"VarietyNames": strings.Join(head(idx.VarietyNames, promptVarietyLimit), ", "),
		"MarketNames":  strings.Join(head(idx.MarketNames, promptMarketLimit), ", "),
		"DateRange":    dateRange,
		"Today":        referenceDate(idx).Format(models.DateLayout),
	}
	var buf bytes.Buffer
	if err := in.system.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("システムプロンプトの生成に失敗: %w", err)
	}
	return buf.String(), nil
}

func (in *Interpreter) renderUser(system, question string, attempt int, lastErr string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(system)
	buf.WriteString("\n\n")

	var err error
	if attempt == 0 {
		err = in.user.Execute(&buf, map[string]string{"Question": question})
	} else {
		err = in.retry.Execute(&buf, map[string]string{"Question": question, "Error": lastErr})
	}
	if err != nil {
		return "", fmt.Errorf("ユーザープロンプトの生成に失敗: %w", err)
	}
	return buf.String(), nil
}

// extractJSONObject はコードフェンスを除去し、全体または最外の {...} をJSONとして取り出します。
func extractJSONObject(text string) ([]byte, bool) {
	text = codeFenceJSON.ReplaceAllString(text, "")
	text = codeFence.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	var probe map[string]interface{}
	if json.Unmarshal([]byte(text), &probe) == nil {
		return []byte(text), true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	span := text[start : end+1]
	if json.Unmarshal([]byte(span), &probe) != nil {
		return nil, false
	}
	return []byte(span), true
}

// filterToMap は下書きフィルタをJSONと同じキーのmapにします。
func filterToMap(f models.Filter) map[string]interface{} {
	out := map[string]interface{}{}
	b, err := json.Marshal(f)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
