package utils

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExtractString returns the string attribute field of item, or "" when it is absent or not a string.
func ExtractString(item map[string]types.AttributeValue, field string) string {
	v, ok := item[field].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return v.Value
}

// FirstString returns the first non-empty string among fields, in order.
func FirstString(item map[string]types.AttributeValue, fields ...string) string {
	for _, field := range fields {
		if s := ExtractString(item, field); s != "" {
			return s
		}
	}
	return ""
}
