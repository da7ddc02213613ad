package services

import (
	"regexp"
	"strconv"
	"time"

	"agri-price-api/pkg/models"
)

var (
	tenDayPeriodPattern = regexp.MustCompile(`^(\d{4})(\d{2})(상순|중순|하순)`)
	monthPeriodPattern  = regexp.MustCompile(`^(\d{4})(\d{2})`)
)

// PeriodRange は旬（上旬・中旬・下旬）を暦日に変換した結果です。
// Start <= Date <= End
type PeriodRange struct {
	Start time.Time
	End   time.Time
	Date  time.Time // 代表日
}

// ParsePeriod は "201801상순" 形式の期間トークンを暦日に変換します。
//
//	상순: 1〜10日、代表日5日
//	중순: 11〜20日、代表日15日
//	하순: 21日〜月末、代表日25日
//
// 旬の指定がない "YYYYMM" は1〜28日・代表日15日として扱います（月末日は計算しない）。
func ParsePeriod(token string) (PeriodRange, error) {
	if m := tenDayPeriodPattern.FindStringSubmatch(token); m != nil {
		year, month, ok := yearMonth(m[1], m[2])
		if !ok {
			return PeriodRange{}, &models.ParseError{Token: token}
		}
		switch m[3] {
		case "상순":
			return newPeriodRange(year, month, 1, 10, 5), nil
		case "중순":
			return newPeriodRange(year, month, 11, 20, 15), nil
		default:
			return newPeriodRange(year, month, 21, daysIn(year, month), 25), nil
		}
	}

	if m := monthPeriodPattern.FindStringSubmatch(token); m != nil {
		year, month, ok := yearMonth(m[1], m[2])
		if !ok {
			return PeriodRange{}, &models.ParseError{Token: token}
		}
		return newPeriodRange(year, month, 1, 28, 15), nil
	}

	return PeriodRange{}, &models.ParseError{Token: token}
}

func yearMonth(y, m string) (int, time.Month, bool) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func newPeriodRange(year int, month time.Month, startDay, endDay, reprDay int) PeriodRange {
	return PeriodRange{
		Start: time.Date(year, month, startDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, month, endDay, 0, 0, 0, 0, time.UTC),
		Date:  time.Date(year, month, reprDay, 0, 0, 0, 0, time.UTC),
	}
}

// daysIn は閏年を考慮した月の日数を返します。
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
