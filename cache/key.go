package cache

import (
	"encoding/base64"
	"encoding/json"
	"reflect"
	"strings"
)

// KeySeparator joins cache key segments.
const KeySeparator = ":"

// Operation aliases used by the service pipeline.
const (
	OpList = "getList"
	OpOne  = "getOne"
)

// Key describes a cache entry. Empty parts are skipped when the key is
// built, so a Key with only Model and Op yields the alias wide prefix.
type Key struct {
	Model   string
	Op      string
	Subject string
	Params  any
}

// String builds the key. See BuildKey.
func (k Key) String() string {
	return BuildKey(k)
}

// BuildKey joins the present parts of k with ":". Params are JSON encoded
// and then base64 encoded so the segment never contains the separator.
// Map keys are sorted by encoding/json, so maps with equal content produce
// equal keys regardless of insertion order. Struct params keep field
// declaration order.
func BuildKey(k Key) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{k.Model, k.Op, k.Subject} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if enc := EncodeParams(k.Params); enc != "" {
		parts = append(parts, enc)
	}
	return strings.Join(parts, KeySeparator)
}

// EncodeParams returns base64(JSON(params)), or "" when params are empty or
// cannot be encoded.
func EncodeParams(params any) string {
	if isEmptyParams(params) {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	if s := string(data); s == "{}" || s == "null" || s == "[]" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeParams reverses EncodeParams into dest.
func DecodeParams(segment string, dest any) error {
	data, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func isEmptyParams(params any) bool {
	if params == nil {
		return true
	}
	rv := reflect.ValueOf(params)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// prefixPattern returns the prefix matching every key nested under key.
func prefixPattern(key string) string {
	return key + KeySeparator
}
