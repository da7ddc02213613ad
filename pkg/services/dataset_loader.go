package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"agri-price-api/pkg/models"
)

// 試行するエンコーディング（順序が優先度）
var candidateEncodings = []string{"utf-8-sig", "utf-8", "cp949", "euc-kr"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DatasetLoader はフラットファイル（CSV / XLSX）から価格テーブルを読み込みます。
type DatasetLoader struct {
	path string
}

// NewDatasetLoader は新しいDatasetLoaderを生成します。
func NewDatasetLoader(path string) *DatasetLoader {
	return &DatasetLoader{path: path}
}

// Path 読み込み対象のファイルパス
func (l *DatasetLoader) Path() string {
	return l.path
}

// Load はファイルを読み込み、列名の正規化・数値変換・期間変換・日付ソートを行います。
func (l *DatasetLoader) Load() (*Table, error) {
	start := time.Now()

	var (
		rows     [][]string
		encoding string
		err      error
	)
	if strings.HasSuffix(strings.ToLower(l.path), ".xlsx") {
		rows, err = readXLSXRows(l.path)
		encoding = "xlsx"
	} else {
		rows, encoding, err = readCSVRows(l.path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("データファイルが空です: %s", l.path)
	}

	table := buildTable(rows)
	table.Encoding = encoding
	table.Source = filepath.Base(l.path)

	log.Printf("📦 [dataset] %s を読み込みました（%d行, encoding=%s, 期間解析失敗=%d件, %v）",
		table.Source, table.Len(), encoding, table.ParseFailures, time.Since(start))
	return table, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("Excelファイルの読み込みに失敗: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("Excelシートの行取得に失敗: %w", err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("データファイルの読み込みに失敗: %w", err)
	}

	for _, enc := range candidateEncodings {
		text, ok := decodeAs(raw, enc)
		if !ok {
			continue
		}
		r := csv.NewReader(strings.NewReader(text))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		rows, err := r.ReadAll()
		if err != nil {
			continue
		}
		return rows, enc, nil
	}
	return nil, "", &models.EncodingError{Path: path, Encodings: candidateEncodings}
}

// decodeAs は指定エンコーディングでデコードできた場合のみtrueを返します。
func decodeAs(raw []byte, enc string) (string, bool) {
	switch enc {
	case "utf-8-sig":
		b := bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	case "utf-8":
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	case "cp949", "euc-kr":
		b, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
		if err != nil || bytes.ContainsRune(b, utf8.RuneError) {
			return "", false
		}
		return string(b), true
	}
	return "", false
}

func buildTable(rows [][]string) *Table {
	header := rows[0]
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = canonicalColumn(h)
	}

	records := make([]PriceRecord, 0, len(rows)-1)
	failures := 0
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := PriceRecord{}
		for i, col := range columns {
			if i >= len(row) {
				break
			}
			assignField(&rec, col, row[i])
		}
		rec.MarketName = strings.TrimPrefix(rec.MarketName, "*")

		if p, err := ParsePeriod(rec.PeriodRaw); err == nil {
			rec.Period = &p
		} else {
			failures++
		}
		records = append(records, rec)
	}

	// 代表日の昇順。日付なしは末尾
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Period, records[j].Period
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Date.Before(b.Date)
	})

	if failures > 0 {
		log.Printf("⚠️ [dataset] 期間トークンを解析できない行が %d 件あります（日付なしとして保持）", failures)
	}

	t := NewTable(columns, records)
	t.ParseFailures = failures
	return t
}

func canonicalColumn(header string) string {
	if c, ok := columnMapping[header]; ok {
		return c
	}
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if c, ok := columnMapping[h]; ok {
		return c
	}
	return h
}

func assignField(rec *PriceRecord, col, value string) {
	switch col {
	case "period_raw":
		rec.PeriodRaw = strings.TrimSpace(value)
	case "market_code":
		rec.MarketCode = strings.TrimSpace(value)
	case "market_name":
		rec.MarketName = strings.TrimSpace(value)
	case "item_code":
		rec.ItemCode = strings.TrimSpace(value)
	case "item_name":
		rec.ItemName = strings.TrimSpace(value)
	case "variety_code":
		rec.VarietyCode = strings.TrimSpace(value)
	case "variety_name":
		rec.VarietyName = strings.TrimSpace(value)
	case "year":
		rec.Year = strings.TrimSpace(value)
	case "price_kg":
		rec.PriceKg = parseNumber(value)
	case "volume_kg":
		rec.VolumeKg = parseNumber(value)
	case "amount_krw":
		rec.AmountKRW = parseNumber(value)
	default:
		if isNumericColumn(col) {
			if rec.Aux == nil {
				rec.Aux = make(map[string]*float64)
			}
			rec.Aux[col] = parseNumber(value)
			return
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[col] = value
	}
}

func isNumericColumn(col string) bool {
	for _, c := range numericColumns {
		if c == col {
			return true
		}
	}
	return false
}

// parseNumber は桁区切りのカンマを除去して数値に変換します。変換できない値はnilです。
func parseNumber(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
