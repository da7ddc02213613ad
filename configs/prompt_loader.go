package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptConfig はprompts.yamlの構造を定義
type PromptConfig struct {
	Version string `yaml:"version"`

	NLU struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
		Retry  string `yaml:"retry"`
	} `yaml:"nlu"`

	Narrative struct {
		Prompt   string `yaml:"prompt"`
		Fallback string `yaml:"fallback"`
	} `yaml:"narrative"`
}

// LoadPromptConfig は埋め込みのデフォルトプロンプトを読み込み、
// pathが指定されていればそのファイルの値で上書きします。
func LoadPromptConfig(path string) (*PromptConfig, error) {
	var cfg PromptConfig
	if err := yaml.Unmarshal(defaultPromptsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("デフォルトプロンプトのパースに失敗: %w", err)
	}

	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("プロンプト設定ファイルの読み込みに失敗: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	cfg.merge(&override)
	return &cfg, nil
}

// merge は空でない項目だけを上書きします。
func (c *PromptConfig) merge(o *PromptConfig) {
	pick := func(dst *string, src string) {
		if strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	pick(&c.Version, o.Version)
	pick(&c.NLU.System, o.NLU.System)
	pick(&c.NLU.User, o.NLU.User)
	pick(&c.NLU.Retry, o.NLU.Retry)
	pick(&c.Narrative.Prompt, o.Narrative.Prompt)
	pick(&c.Narrative.Fallback, o.Narrative.Fallback)
}
