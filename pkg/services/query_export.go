package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"agri-price-api/pkg/models"
)

// エクスポートのシート名
const (
	ExportSeriesSheet  = "series"
	ExportSummarySheet = "summary"
)

// BuildExportWorkbook は系列と要約統計を2シートのxlsxにまとめます。
// 呼び出し側はWrite後にCloseしてください。
func BuildExportWorkbook(resp *models.QueryResponse) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFileが作る既定シートをseriesにする
	if err := f.SetSheetName(f.GetSheetName(0), ExportSeriesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("シート名の設定に失敗: %w", err)
	}
	if err := writeSeriesSheet(f, resp.Series); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(ExportSummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("シートの作成に失敗: %w", err)
	}
	if err := writeSummarySheet(f, resp); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSeriesSheet(f *excelize.File, series []models.SeriesPoint) error {
	header := []interface{}{"date", "market_name", "price", "volume", "volatility"}
	if err := f.SetSheetRow(ExportSeriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("ヘッダの書き込みに失敗: %w", err)
	}
	for i, p := range series {
		row := []interface{}{p.Date, cellString(p.MarketName), cellFloat(p.Price), cellFloat(p.Volume), cellFloat(p.Volatility)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportSeriesSheet, cell, &row); err != nil {
			return fmt.Errorf("系列の書き込みに失敗 (row=%d): %w", i+2, err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, resp *models.QueryResponse) error {
	rows := [][]interface{}{{"key", "value"}}
	if resp.Filters != nil {
		fl := resp.Filters
		rows = append(rows,
			[]interface{}{"item_name", fl.ItemName},
			[]interface{}{"variety_name", cellString(fl.VarietyName)},
			[]interface{}{"market_name", cellString(fl.MarketName)},
			[]interface{}{"date_from", cellString(fl.DateFrom)},
			[]interface{}{"date_to", cellString(fl.DateTo)},
			[]interface{}{"chart_type", string(fl.ChartType)},
			[]interface{}{"granularity", string(fl.Granularity)},
			[]interface{}{"intent", string(fl.Intent)},
		)
	}
	if s := resp.Summary; s != nil {
		rows = append(rows,
			[]interface{}{"latest_price", cellFloat(s.LatestPrice)},
			[]interface{}{"latest_volume", cellFloat(s.LatestVolume)},
			[]interface{}{"wow_price_pct", cellFloat(s.WoWPricePct)},
			[]interface{}{"wow_volume_pct", cellFloat(s.WoWVolumePct)},
			[]interface{}{"mom_price_pct", cellFloat(s.MoMPricePct)},
			[]interface{}{"volatility_14d", cellFloat(s.Volatility14d)},
			[]interface{}{"data_points", s.DataPoints},
			[]interface{}{"missing_rate", s.MissingRate},
			[]interface{}{"anomaly_count", s.AnomalyCount},
			[]interface{}{"trend_direction", s.TrendDirection},
		)
	}
	if resp.Narrative != "" {
		rows = append(rows, []interface{}{"narrative", resp.Narrative})
	}
	for _, w := range resp.Warnings {
		rows = append(rows, []interface{}{"warning", w})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ExportSummarySheet, cell, &row); err != nil {
			return fmt.Errorf("要約の書き込みに失敗 (row=%d): %w", i+1, err)
		}
	}
	return nil
}

// 空欄はnilで書き込む
func cellFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func cellString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
