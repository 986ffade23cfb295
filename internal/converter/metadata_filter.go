package converter

import (
	"fmt"
	"reflect"
	"strings"

	"dify-adapter-go/internal/types"
)

// matchesMetadataFilter 检查候选结果的元数据是否满足过滤条件
// 空条件列表匹配所有结果；条件结果按logical_operator合并(and=全部为真, or=任一为真)。
func (c *Converter) matchesMetadataFilter(metadata map[string]interface{}, filter *types.MetadataFilter) bool {
	if filter == nil || len(filter.Conditions) == 0 {
		return true
	}

	results := make([]bool, 0, len(filter.Conditions))
	for _, condition := range filter.Conditions {
		metaValue, exists := metadata[condition.Key]
		if !exists {
			// 缺失的元数据字段视为条件不成立
			results = append(results, false)
			continue
		}
		results = append(results, c.evaluateCondition(metaValue, condition.Operator, condition.Value))
	}

	if filter.LogicalOperator == types.LogicalOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}

	// 默认按and处理
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// evaluateCondition 评估单个过滤条件
// 操作符是封闭集合；未知操作符按不匹配处理(fail-closed)。
func (c *Converter) evaluateCondition(metaValue interface{}, operator string, conditionValue interface{}) bool {
	switch operator {
	case types.OpEquals:
		return valuesEqual(metaValue, conditionValue)
	case types.OpNotEquals:
		return !valuesEqual(metaValue, conditionValue)
	case types.OpContains:
		return containsFold(metaValue, conditionValue)
	case types.OpNotContains:
		return !containsFold(metaValue, conditionValue)
	case types.OpIn:
		return valueInList(metaValue, conditionValue)
	case types.OpNotIn:
		return !valueInList(metaValue, conditionValue)
	default:
		c.logger.Printf("未知的过滤操作符: %s，按不匹配处理", operator)
		return false
	}
}

// valuesEqual 比较两个元数据值是否相等
// JSON解码会把所有数字变成float64，因此数字之间按数值比较。
func valuesEqual(a, b interface{}) bool {
	fa, aIsNum := toFloat(a)
	fb, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// containsFold 大小写不敏感的子串匹配，两侧都先转为字符串
func containsFold(metaValue, conditionValue interface{}) bool {
	meta := strings.ToLower(fmt.Sprint(metaValue))
	cond := strings.ToLower(fmt.Sprint(conditionValue))
	return strings.Contains(meta, cond)
}

// valueInList 检查元数据值是否在条件值列表中
// 条件值不是列表时退化为相等比较。
func valueInList(metaValue, conditionValue interface{}) bool {
	list, ok := conditionValue.([]interface{})
	if !ok {
		return valuesEqual(metaValue, conditionValue)
	}
	for _, item := range list {
		if valuesEqual(metaValue, item) {
			return true
		}
	}
	return false
}

// toFloat 尝试把JSON解码出的数值类型统一转为float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
