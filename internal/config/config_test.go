package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempConfig 将YAML内容写入临时配置文件并返回路径
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err, "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigParsesAPIKeyTable 验证静态API Key表能被正确解析
func TestLoadConfigParsesAPIKeyTable(t *testing.T) {
	content := `
server:
  address: ":9001"
internal_search:
  base_url: "http://search:8002"
  timeout_seconds: 10
api_keys:
  - key: "dify-pdf-docs-001"
    collection: "pdf_documents"
    permissions: ["read"]
    rate_limit: 100
  - key: "dify-tech-docs-002"
    collection: "technical_docs"
    permissions: ["read"]
    rate_limit: 200
`
	configPath := writeTempConfig(t, content)

	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err, "加载配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	require.Len(t, config.APIKeys, 2)
	assert.Equal(t, "dify-pdf-docs-001", config.APIKeys[0].Key)
	assert.Equal(t, "pdf_documents", config.APIKeys[0].Collection)
	assert.Equal(t, []string{"read"}, config.APIKeys[0].Permissions)
	assert.Equal(t, 200, config.APIKeys[1].RateLimit)

	assert.Equal(t, ":9001", config.Server.Address)
	assert.Equal(t, "http://search:8002", config.InternalSearch.BaseURL)
	assert.Equal(t, 10, config.InternalSearch.TimeoutSeconds)
}

// TestLoadConfigAppliesDefaults 验证缺失字段会被默认值填充
func TestLoadConfigAppliesDefaults(t *testing.T) {
	content := `
api_keys:
  - key: "dify-pdf-docs-001"
    collection: "pdf_documents"
    permissions: ["read"]
`
	configPath := writeTempConfig(t, content)

	config, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":8001", config.Server.Address, "服务地址应该使用默认值")
	assert.Equal(t, "http://localhost:8002", config.InternalSearch.BaseURL)
	assert.Equal(t, 30, config.InternalSearch.TimeoutSeconds, "搜索超时应该默认为30秒")
	assert.Equal(t, 5, config.InternalSearch.HealthTimeoutSeconds)
	assert.Equal(t, "/health", config.InternalSearch.HealthPath)
	assert.Equal(t, "zhipuai", config.InternalSearch.EmbeddingModel, "嵌入模型应该默认为zhipuai")
	assert.Equal(t, "dify-user-", config.DynamicKeys.KeyPrefix)
	assert.Equal(t, "user_kb_", config.DynamicKeys.CollectionPrefix)
	assert.Equal(t, 100, config.DynamicKeys.DefaultRateLimit)
	assert.Equal(t, 3600, config.RateLimit.WindowSeconds, "限流窗口应该默认为1小时")
	assert.Equal(t, "info", config.Logger.Level)
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖文件配置
func TestLoadConfigEnvOverrides(t *testing.T) {
	content := `
server:
  address: ":8001"
internal_search:
  base_url: "http://localhost:8002"
`
	configPath := writeTempConfig(t, content)

	t.Setenv("ADAPTER_ADDRESS", ":9999")
	t.Setenv("INTERNAL_SEARCH_URL", "http://override:8003")
	t.Setenv("LOG_LEVEL", "DEBUG")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9999", config.Server.Address, "ADAPTER_ADDRESS应该覆盖文件配置")
	assert.Equal(t, "http://override:8003", config.InternalSearch.BaseURL, "INTERNAL_SEARCH_URL应该覆盖文件配置")
	assert.Equal(t, "debug", config.Logger.Level, "LOG_LEVEL应该覆盖文件配置并转为小写")
}

// TestLoadConfigFromFileOnlyRequiresPath 验证缺少路径时报错
func TestLoadConfigFromFileOnlyRequiresPath(t *testing.T) {
	_, err := LoadConfigFromFileOnly("")
	assert.Error(t, err, "缺少配置文件路径应该返回错误")

	_, err = LoadConfigFromFileOnly("/no/such/config.yaml")
	assert.Error(t, err, "不存在的配置文件应该返回错误")
}

// TestActiveCollectionsDeduplicates 验证Collection列表去重
func TestActiveCollectionsDeduplicates(t *testing.T) {
	config := &Config{
		APIKeys: []APIKeyConfig{
			{Key: "k1", Collection: "docs"},
			{Key: "k2", Collection: "docs"},
			{Key: "k3", Collection: "kb"},
		},
	}

	collections := config.ActiveCollections()
	assert.Equal(t, []string{"docs", "kb"}, collections, "重复的Collection应该被去重且保持顺序")
}
