package services

import (
	"context"
	"fmt"
	"time"

	"agri-price-api/pkg/azure"
	"agri-price-api/pkg/models"
)

// AzureOpenAIService Azure OpenAI をCompleterとして提供するサービス
type AzureOpenAIService struct {
	client    *azure.OpenAIClient
	timeout   time.Duration
	maxTokens int
}

// NewAzureOpenAIService 新しいAzure OpenAI サービスを作成
func NewAzureOpenAIService(endpoint, apiKey, apiVersion, deploymentName string, timeout time.Duration) *AzureOpenAIService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureOpenAIService{
		client:    azure.NewOpenAIClient(endpoint, apiKey, apiVersion, deploymentName, timeout),
		timeout:   timeout,
		maxTokens: 1024,
	}
}

// CreateChatCompletion Azure OpenAI チャット補完を作成
func (aos *AzureOpenAIService) CreateChatCompletion(ctx context.Context, messages []azure.ChatMessage, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, aos.timeout)
	defer cancel()

	response, err := aos.client.ChatCompletion(ctx, messages, maxTokens, temperature)
	if err != nil {
		return "", &models.DependencyError{Op: "chat completion", Err: err}
	}
	content, err := response.Content()
	if err != nil {
		return "", &models.DependencyError{Op: "chat completion", Err: err}
	}
	return content, nil
}

// Complete はプロンプトを1つのユーザーメッセージとして送信します（temperature 0.1）。
func (aos *AzureOpenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := aos.CreateChatCompletion(ctx, []azure.ChatMessage{{Role: "user", Content: prompt}}, aos.maxTokens, 0.1)
	if err != nil {
		return "", fmt.Errorf("LLM呼び出しに失敗: %w", err)
	}
	return out, nil
}
