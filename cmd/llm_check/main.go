package main

import (
	"context"
	"flag"
	"log"
	"time"

	config "agri-price-api/configs"
	"agri-price-api/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Fatalf("FATAL: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()
	if !cfg.LLMEnabled() {
		log.Fatal("FATAL: 必要な環境変数 (AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY) が設定されていません。")
	}

	prompt := flag.String("prompt", "안녕하세요! 한 문장으로 답해 주세요.", "送信するプロンプト")
	flag.Parse()

	completer := services.NewAzureOpenAIService(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.AzureOpenAIChatDeploymentName,
		cfg.LLMTimeout,
	)

	log.Printf("INFO: deployment=%s api-version=%s", cfg.AzureOpenAIChatDeploymentName, cfg.AzureOpenAIAPIVersion)
	log.Println("INFO: リクエストを送信します...")

	start := time.Now()
	answer, err := completer.Complete(context.Background(), *prompt)
	if err != nil {
		log.Fatalf("FATAL: 補完に失敗: %v", err)
	}

	log.Printf("SUCCESS: 応答を受信しました (%s)", time.Since(start).Round(time.Millisecond))
	log.Println("--- 応答 ---")
	log.Println(answer)
}
