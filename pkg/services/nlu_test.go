package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "agri-price-api/configs"
	"agri-price-api/pkg/models"
)

func newTestInterpreter(t *testing.T, completer Completer) *Interpreter {
	t.Helper()
	prompts, err := config.LoadPromptConfig("")
	require.NoError(t, err)

	dataset := testDataset(t)
	in, err := NewInterpreter(dataset, NewFilterResolver(dataset), completer, NLUPrompts{
		System: prompts.NLU.System,
		User:   prompts.NLU.User,
		Retry:  prompts.NLU.Retry,
	}, 1)
	require.NoError(t, err)
	return in
}

func TestParseDateExpression(t *testing.T) {
	today := time.Date(2018, 3, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		text     string
		from, to string
	}{
		{"최근 3개월 감자 가격", "2017-12-31", "2018-03-31"},
		{"최근 10일", "2018-03-21", "2018-03-31"},
		{"최근 한달", "2018-02-28", "2018-03-31"},
		{"최근 2주", "2018-03-17", "2018-03-31"},
		{"작년 양파", "2017-01-01", "2017-12-31"},
		{"2016년 감자", "2016-01-01", "2016-12-31"},
		{"전월 대비", "2018-01-31", "2018-03-31"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			from, to, ok := ParseDateExpression(tt.text, today)
			require.True(t, ok)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}

	_, _, ok := ParseDateExpression("감자 가격", today)
	assert.False(t, ok)
}

func TestDetectAmbiguity(t *testing.T) {
	qs := DetectAmbiguity("요즘 비싼 감자")
	require.Len(t, qs, 2)
	assert.Equal(t, ClarifyRecentWindow, qs[0].ID)
	assert.Equal(t, ClarifyExpensiveMeaning, qs[1].ID)

	assert.Empty(t, DetectAmbiguity("요즘 3개월 감자"), "明示的な期間があれば確認しない")
	assert.Empty(t, DetectAmbiguity("2018년 감자 가격"))
}

func TestRuleBasedExtract(t *testing.T) {
	idx := BuildDimensionIndex(testTable(t))

	f, warnings := ruleBasedExtract("서울가락 양파 시장별 비교 2018년", idx, WarnLLMParseFailed)
	assert.Equal(t, "양파", f.ItemName)
	assert.Equal(t, "서울가락", f.Market())
	assert.Equal(t, models.ChartCompareMarkets, f.ChartType)
	assert.Equal(t, "2018-01-01", *f.DateFrom)
	assert.Equal(t, []string{WarnLLMParseFailed}, warnings)

	f, warnings = ruleBasedExtract("가격 알려줘", idx, WarnLLMNotConfigured)
	assert.Equal(t, "감자", f.ItemName)
	assert.Equal(t, models.DefaultMarketName, f.Market())
	assert.Equal(t, "2018-09-26", *f.DateFrom)
	assert.Equal(t, "2018-12-25", *f.DateTo)
	require.Len(t, warnings, 3)
	assert.Equal(t, WarnLLMNotConfigured, warnings[0])
}

func TestInterpretWithClarifyAnswers(t *testing.T) {
	in := newTestInterpreter(t, nil)

	res, err := in.Interpret(context.Background(), "요즘 비싼 감자", map[string]string{
		ClarifyExpensiveMeaning: "high_avg_price",
		ClarifyRecentWindow:     "30d",
	})
	require.NoError(t, err)

	fr, ok := res.(*models.FilterResult)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, models.IntentHighAvgPrice, fr.Filter.Intent)
	assert.Equal(t, 30, fr.Filter.WindowDays)
	assert.Equal(t, "2018-11-25", *fr.Filter.DateFrom)
	assert.Equal(t, "2018-12-25", *fr.Filter.DateTo)
	assert.Equal(t, WarnClarifyApplied, fr.Warnings[0])
}

func TestInterpretWithoutCompleter(t *testing.T) {
	in := newTestInterpreter(t, nil)

	res, err := in.Interpret(context.Background(), "요즘 비싼 감자", nil)
	require.NoError(t, err)
	cr, ok := res.(*models.ClarifyResult)
	require.True(t, ok, "got %T", res)
	assert.Len(t, cr.Clarification.Questions, 2)
	assert.Equal(t, "감자", cr.Clarification.DraftFilters["item_name"])

	res, err = in.Interpret(context.Background(), "2018년 양파 가격", nil)
	require.NoError(t, err)
	fr, ok := res.(*models.FilterResult)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, "양파", fr.Filter.ItemName)
	assert.Equal(t, WarnLLMNotConfigured, fr.Warnings[0])
}

func TestInterpretWithCompleter(t *testing.T) {
	t.Run("accepts fenced JSON and corrects names", func(t *testing.T) {
		var prompts []string
		in := newTestInterpreter(t, CompleterFunc(func(_ context.Context, prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return "```json\n{\"type\": \"filters\", \"filters\": {\"item_name\": \"감자류\", \"market_name\": \"서울\"}, \"warnings\": [\"llm note\"]}\n```", nil
		}))

		res, err := in.Interpret(context.Background(), "서울 감자 가격", nil)
		require.NoError(t, err)
		fr := res.(*models.FilterResult)
		assert.Equal(t, "감자", fr.Filter.ItemName)
		assert.Equal(t, "서울가락", fr.Filter.Market())
		assert.NotNil(t, fr.Filter.DateFrom, "期間は補完される")
		assert.Contains(t, fr.Warnings, "기간 미지정으로 기본값을 적용했습니다.")
		assert.Equal(t, "llm note", fr.Warnings[len(fr.Warnings)-1])

		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "감자, 양파")
		assert.Contains(t, prompts[0], "2018-01-05 ~ 2018-12-25")
	})

	t.Run("retries once then falls back to rules", func(t *testing.T) {
		calls := 0
		in := newTestInterpreter(t, CompleterFunc(func(_ context.Context, prompt string) (string, error) {
			calls++
			if calls == 2 {
				assert.Contains(t, prompt, "Your previous output was invalid JSON")
			}
			return "죄송합니다. JSON을 만들 수 없습니다.", nil
		}))

		res, err := in.Interpret(context.Background(), "양파 2018년", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		fr := res.(*models.FilterResult)
		assert.Equal(t, "양파", fr.Filter.ItemName)
		assert.Equal(t, WarnLLMParseFailed, fr.Warnings[0])
	})

	t.Run("dependency errors never reach the caller", func(t *testing.T) {
		in := newTestInterpreter(t, CompleterFunc(func(context.Context, string) (string, error) {
			return "", &models.DependencyError{Op: "chat", Err: errors.New("timeout")}
		}))
		res, err := in.Interpret(context.Background(), "감자", nil)
		require.NoError(t, err)
		assert.IsType(t, &models.FilterResult{}, res)
	})

	t.Run("clarify response is capped at two questions", func(t *testing.T) {
		in := newTestInterpreter(t, CompleterFunc(func(context.Context, string) (string, error) {
			q := `{"id": "q", "question": "?", "options": ["a"], "default": "a"}`
			return `{"type": "clarify", "draft_filters": {"item_name": "감자"}, "questions": [` +
				strings.Join([]string{q, q, q}, ",") + `]}`, nil
		}))
		res, err := in.Interpret(context.Background(), "요즘 감자", nil)
		require.NoError(t, err)
		cr := res.(*models.ClarifyResult)
		assert.Len(t, cr.Clarification.Questions, 2)
	})

	t.Run("invalid filter schema is retried", func(t *testing.T) {
		calls := 0
		in := newTestInterpreter(t, CompleterFunc(func(context.Context, string) (string, error) {
			calls++
			if calls == 1 {
				return `{"type": "filters", "filters": {"item_name": "감자", "chart_type": "pie"}}`, nil
			}
			return `{"type": "filters", "filters": {"item_name": "감자", "date_from": "2018-01-01", "date_to": "2018-06-30"}}`, nil
		}))
		res, err := in.Interpret(context.Background(), "감자", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		fr := res.(*models.FilterResult)
		assert.Equal(t, "2018-06-30", *fr.Filter.DateTo)
	})
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := extractJSONObject("설명입니다 {\"type\": \"filters\"} 끝")
	require.True(t, ok)
	assert.JSONEq(t, `{"type": "filters"}`, string(raw))

	_, ok = extractJSONObject("no json here")
	assert.False(t, ok)
}
