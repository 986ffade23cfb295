package auth

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"dify-adapter-go/internal/config"
	"dify-adapter-go/internal/constants"
	"dify-adapter-go/pkg/ratelimit"
)

// 认证失败的哨兵错误，中间件根据错误类型映射到对应的Dify错误码
var (
	ErrUnknownKey  = errors.New("invalid api key")
	ErrForbidden   = errors.New("collection access denied")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// PermissionRead 读权限，当前唯一支持的权限
const PermissionRead = "read"

// KeyConfig API Key的访问配置，一个Key只映射到一个Collection
type KeyConfig struct {
	Key         string   // API Key本身
	Collection  string   // 允许访问的Collection名称
	Permissions []string // 权限集合，目前只有"read"
	RateLimit   int      // 窗口内请求上限
	Description string   // 描述信息
	UserID      string   // 动态Key对应的用户ID
	IsDynamic   bool     // 是否为动态派生的Key
}

// HasPermission 检查Key是否具有指定权限
func (kc *KeyConfig) HasPermission(perm string) bool {
	for _, p := range kc.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Validator 负责API Key验证、Collection权限检查和速率限制
// 静态Key表在进程启动后只读；动态Key派生是纯函数，无需加锁。
type Validator struct {
	static           map[string]*KeyConfig
	dynamicPrefix    string
	collectionPrefix string
	defaultRateLimit int
	limiter          *ratelimit.SlidingWindow
	stats            *Stats
	logger           *log.Logger
}

// ValidatorOption 定义配置选项函数
type ValidatorOption func(*Validator)

// WithValidatorLogger 配置自定义日志记录器
func WithValidatorLogger(logger *log.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator 根据配置创建认证校验器
func NewValidator(cfg *config.Config, limiter *ratelimit.SlidingWindow, stats *Stats, options ...ValidatorOption) *Validator {
	static := make(map[string]*KeyConfig, len(cfg.APIKeys))
	for _, entry := range cfg.APIKeys {
		kc := &KeyConfig{
			Key:         entry.Key,
			Collection:  entry.Collection,
			Permissions: entry.Permissions,
			RateLimit:   entry.RateLimit,
			Description: entry.Description,
		}
		if kc.RateLimit <= 0 {
			kc.RateLimit = constants.DefaultRateLimit
		}
		static[entry.Key] = kc
	}

	v := &Validator{
		static:           static,
		dynamicPrefix:    cfg.DynamicKeys.KeyPrefix,
		collectionPrefix: cfg.DynamicKeys.CollectionPrefix,
		defaultRateLimit: cfg.DynamicKeys.DefaultRateLimit,
		limiter:          limiter,
		stats:            stats,
		logger:           log.New(os.Stdout, "[AuthValidator] ", log.LstdFlags),
	}
	if v.dynamicPrefix == "" {
		v.dynamicPrefix = constants.DefaultDynamicKeyPrefix
	}
	if v.collectionPrefix == "" {
		v.collectionPrefix = constants.DefaultDynamicCollectionPrefix
	}
	if v.defaultRateLimit <= 0 {
		v.defaultRateLimit = constants.DefaultRateLimit
	}

	for _, option := range options {
		option(v)
	}

	return v
}

// Resolve 将API Key解析为访问配置
// 优先查静态表，未命中时尝试按动态用户Key模式派生；两者都失败返回ErrUnknownKey。
func (v *Validator) Resolve(token string) (*KeyConfig, error) {
	if kc, ok := v.static[token]; ok {
		return kc, nil
	}

	if kc := v.resolveDynamic(token); kc != nil {
		return kc, nil
	}

	return nil, ErrUnknownKey
}

// resolveDynamic 按 <prefix>{user_id} 模式派生动态Key配置
// 同一个Key总是派生出相同的配置，不产生任何持久化状态。
func (v *Validator) resolveDynamic(token string) *KeyConfig {
	if !strings.HasPrefix(token, v.dynamicPrefix) {
		return nil
	}

	userID := token[len(v.dynamicPrefix):]
	// 仅允许字母数字，防止构造出越权的Collection名称
	if userID == "" || !isAlphanumeric(userID) {
		return nil
	}

	return &KeyConfig{
		Key:         token,
		Collection:  v.collectionPrefix + userID,
		Permissions: []string{PermissionRead},
		RateLimit:   v.defaultRateLimit,
		Description: fmt.Sprintf("用户%s的个人知识库", userID),
		UserID:      userID,
		IsDynamic:   true,
	}
}

// Authorize 检查Key是否有权访问指定的knowledge_id
// 一个Key只映射到一个Collection，不支持通配或多Collection授权。
func (v *Validator) Authorize(kc *KeyConfig, knowledgeID string) error {
	if !kc.HasPermission(PermissionRead) {
		v.logger.Printf("Collection访问被拒绝(缺少read权限): %s -> %s", maskKey(kc.Key), knowledgeID)
		return ErrForbidden
	}
	if kc.Collection != knowledgeID {
		v.logger.Printf("Collection访问被拒绝: %s -> %s", maskKey(kc.Key), knowledgeID)
		return ErrForbidden
	}
	return nil
}

// CheckRateLimit 检查Key的速率限制
func (v *Validator) CheckRateLimit(kc *KeyConfig) error {
	if !v.limiter.Allow(kc.Key, kc.RateLimit) {
		v.logger.Printf("速率限制触发: %s", maskKey(kc.Key))
		return ErrRateLimited
	}
	return nil
}

// Remaining 返回Key在当前窗口内的剩余请求次数
func (v *Validator) Remaining(kc *KeyConfig) int {
	return v.limiter.Remaining(kc.Key, kc.RateLimit)
}

// Stats 返回关联的认证统计对象
func (v *Validator) Stats() *Stats {
	return v.stats
}

// isAlphanumeric 检查字符串是否只包含字母和数字
func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// maskKey 日志中只展示Key前缀，避免泄露完整密钥
func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
