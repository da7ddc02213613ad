package handlers

import (
	"fmt"
	"log"

	config "agri-price-api/configs"
	"agri-price-api/pkg/services"
)

// NewDependencies は設定からサービス群を組み立てます。
// データセットはまだ読み込みません（Dataset.Init で明示的に読み込むか、初回アクセス時に遅延ロード）。
func NewDependencies(cfg *config.Config) (Dependencies, error) {
	prompts, err := config.LoadPromptConfig(cfg.PromptsPath)
	if err != nil {
		return Dependencies{}, fmt.Errorf("プロンプト設定の読み込みに失敗: %w", err)
	}

	// LLMが未設定ならnilのままにして、ルールベースの解釈・テンプレートの説明文で動かす
	var completer services.Completer
	if cfg.LLMEnabled() {
		completer = services.NewAzureOpenAIService(
			cfg.AzureOpenAIEndpoint,
			cfg.AzureOpenAIAPIKey,
			cfg.AzureOpenAIAPIVersion,
			cfg.AzureOpenAIChatDeploymentName,
			cfg.LLMTimeout,
		)
		log.Printf("🧠 [nlu] Azure OpenAI を使用します (deployment=%s)", cfg.AzureOpenAIChatDeploymentName)
	} else {
		log.Printf("⚠️ [nlu] Azure OpenAI が未設定のため、ルールベースで解釈します")
	}

	dataset := services.NewDatasetContext(services.NewDatasetLoader(cfg.DataPath))
	resolver := services.NewFilterResolver(dataset)

	interpreter, err := services.NewInterpreter(dataset, resolver, completer, services.NLUPrompts{
		System: prompts.NLU.System,
		User:   prompts.NLU.User,
		Retry:  prompts.NLU.Retry,
	}, cfg.NLUMaxRetries)
	if err != nil {
		return Dependencies{}, err
	}
	narrator, err := services.NewNarrativeGenerator(completer, cfg.UseLLMNarrative, services.NarrativePrompts{
		Prompt:   prompts.Narrative.Prompt,
		Fallback: prompts.Narrative.Fallback,
	})
	if err != nil {
		return Dependencies{}, err
	}

	cache := services.NewQueryCache(cfg.CacheTTL, services.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
	engine := services.NewQueryEngine(dataset)

	return Dependencies{
		Dataset:    dataset,
		Resolver:   resolver,
		Engine:     engine,
		Pipeline:   services.NewQueryPipeline(dataset, resolver, interpreter, engine, services.NewSummaryCalculator(), narrator, cache),
		Cache:      cache,
		Monitoring: services.NewMonitoringService(),
	}, nil
}

// Close はキャッシュの後始末をします。
func (d Dependencies) Close() error {
	return d.Cache.Close()
}
