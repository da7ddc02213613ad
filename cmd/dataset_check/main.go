package main

import (
	"flag"
	"fmt"
	"log"

	config "agri-price-api/configs"
	"agri-price-api/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	cfg := config.LoadConfig()

	path := flag.String("path", cfg.DataPath, "データファイルのパス（CSV / XLSX）")
	item := flag.String("item", "", "品種一覧を表示する品目名")
	flag.Parse()

	fmt.Println("=== データセット読み込みチェック ===")
	fmt.Printf("ファイル: %s\n", *path)

	table, err := services.NewDatasetLoader(*path).Load()
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}
	idx := services.BuildDimensionIndex(table)
	dims := idx.Dimensions(*item)

	fmt.Printf("エンコーディング: %s\n", table.Encoding)
	fmt.Printf("行数: %d\n", table.Len())
	fmt.Printf("期間を解析できない行: %d\n", table.ParseFailures)
	fmt.Printf("列: %v\n", table.Columns)
	if dims.DateMin != nil && dims.DateMax != nil {
		fmt.Printf("データ期間: %s ~ %s\n", *dims.DateMin, *dims.DateMax)
	} else {
		fmt.Println("データ期間: なし")
	}
	fmt.Printf("品目: %d件 / 品種: %d件 / 市場: %d件\n",
		len(dims.ItemNames), len(idx.VarietyNames), len(dims.MarketNames))

	if *item != "" {
		fmt.Printf("\n--- %s の品種 ---\n", *item)
		for _, v := range dims.VarietyNames {
			fmt.Printf("  %s\n", v)
		}
	}
}
