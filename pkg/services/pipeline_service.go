package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"agri-price-api/pkg/models"
)

// 応答種別
const (
	ResponseTypeResult  = "result"
	ResponseTypeClarify = "clarify"
)

const clarifyWarning = "질문이 애매하여 확인이 필요합니다."

// QueryPipeline はリクエスト1件を「フィルタ確定 → 抽出・集計 → 要約 → 説明文」の順に処理します。
// 警告は各段で追記され、途中で消されることはありません。
type QueryPipeline struct {
	dataset     *DatasetContext
	resolver    *FilterResolver
	interpreter *Interpreter
	engine      *QueryEngine
	calculator  *SummaryCalculator
	narrator    *NarrativeGenerator
	cache       *QueryCache
}

// NewQueryPipeline は新しいQueryPipelineを生成します。cacheはnil可。
func NewQueryPipeline(
	dataset *DatasetContext,
	resolver *FilterResolver,
	interpreter *Interpreter,
	engine *QueryEngine,
	calculator *SummaryCalculator,
	narrator *NarrativeGenerator,
	cache *QueryCache,
) *QueryPipeline {
	return &QueryPipeline{
		dataset:     dataset,
		resolver:    resolver,
		interpreter: interpreter,
		engine:      engine,
		calculator:  calculator,
		narrator:    narrator,
		cache:       cache,
	}
}

// Run はリクエストを処理して応答を返します。
//
// 対象データが0件の場合は、蓄積された警告を持つ応答とmodels.ErrNoDataを返します。
// filtersのスキーマ違反は*models.SchemaValidationError、入力なしはmodels.ErrMissingInputです。
func (p *QueryPipeline) Run(ctx context.Context, requestID string, req models.QueryRequest) (*models.QueryResponse, error) {
	var (
		filter   models.Filter
		warnings []string
	)

	switch {
	case len(req.Filters) > 0:
		f, err := models.DecodeFilter(req.Filters)
		if err != nil {
			return nil, err
		}
		corrected, corrWarnings, err := p.resolver.CorrectDirect(f)
		if err != nil {
			return nil, err
		}
		filter = corrected
		warnings = append(warnings, corrWarnings...)

	case req.Question != "":
		result, err := p.interpreter.Interpret(ctx, req.Question, req.ClarifyAnswers)
		if err != nil {
			return nil, err
		}
		switch r := result.(type) {
		case *models.ClarifyResult:
			clarification := r.Clarification
			return &models.QueryResponse{
				Type:          ResponseTypeClarify,
				Series:        []models.SeriesPoint{},
				Warnings:      append([]string{clarifyWarning}, r.Warnings...),
				Clarification: &clarification,
				RequestID:     requestID,
			}, nil
		case *models.FilterResult:
			filter = r.Filter
			warnings = append(warnings, r.Warnings...)
		default:
			return nil, fmt.Errorf("未知の解釈結果です: %T", result)
		}

	default:
		return nil, models.ErrMissingInput
	}

	outcome, err := p.execute(ctx, filter)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, outcome.Warnings...)
	if warnings == nil {
		warnings = []string{}
	}

	if len(outcome.Series) == 0 {
		return &models.QueryResponse{
			Type:      ResponseTypeResult,
			Filters:   &outcome.Filter,
			Series:    []models.SeriesPoint{},
			Warnings:  warnings,
			RequestID: requestID,
		}, models.ErrNoData
	}

	return &models.QueryResponse{
		Type:      ResponseTypeResult,
		Filters:   &outcome.Filter,
		Series:    outcome.Series,
		Summary:   outcome.Summary,
		Narrative: outcome.Narrative,
		Warnings:  warnings,
		RequestID: requestID,
	}, nil
}

// execute は確定済みフィルタでクエリ・要約・説明文を作ります。結果はキャッシュされます。
func (p *QueryPipeline) execute(ctx context.Context, f models.Filter) (*CachedQuery, error) {
	key := CacheKey(f, p.dataset.Version())
	if cached, ok := p.cache.Get(ctx, key); ok {
		log.Printf("💾 [cache] キャッシュヒット: %s", f.ItemName)
		return cached, nil
	}

	result, err := p.engine.Execute(f)
	if err != nil {
		return nil, err
	}
	outcome := &CachedQuery{
		Filter:   result.Filter,
		Series:   result.Series,
		Warnings: result.Warnings,
	}
	if result.Empty() {
		return outcome, nil
	}

	summary := p.calculator.Calculate(result.Series, result.Filter)
	outcome.Summary = p.calculator.Enrich(summary, result.Series)

	if result.Filter.Explain {
		narrative, err := p.narrator.Generate(ctx, result.Filter, result.Series, outcome.Summary)
		if err != nil {
			log.Printf("⚠️ [narrative] 説明文の生成に失敗: %v", err)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("내러티브 생성 실패: %v", err))
			narrative = DefaultNarrative(result.Filter)
		}
		outcome.Narrative = narrative
	}

	p.cache.Set(ctx, key, outcome)
	return outcome, nil
}

// IsNoData はerrがデータなしを表すかどうか
func IsNoData(err error) bool {
	return errors.Is(err, models.ErrNoData)
}
