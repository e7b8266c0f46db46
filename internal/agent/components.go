package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
)

// ArkConfig 是 Ark 模型服务的连接配置。
type ArkConfig struct {
	APIKey       string `mapstructure:"api_key"`
	ModelID      string `mapstructure:"model_id"`
	BaseURL      string `mapstructure:"base_url"`
	EmbedModelID string `mapstructure:"embed_model_id"`
}

// NewChatModel 初始化 Ark ChatModel。
// temperature 为 nil 时使用服务端默认值；评审/回答模型传 0 以保证判定稳定。
func NewChatModel(ctx context.Context, arkConfig ArkConfig, temperature *float32) (*ark.ChatModel, error) {
	if arkConfig.APIKey == "" || arkConfig.ModelID == "" {
		return nil, fmt.Errorf("ARK_API_KEY, ARK_MODEL_ID must be set")
	}

	config := &ark.ChatModelConfig{
		APIKey:      arkConfig.APIKey,
		Model:       arkConfig.ModelID,
		BaseURL:     arkConfig.BaseURL,
		Temperature: temperature,
	}

	chatModel, err := ark.NewChatModel(ctx, config)
	if err != nil {
		return nil, err
	}

	return chatModel, nil
}

func float32Ptr(v float32) *float32 { return &v }
