package xjson

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMarshal 表示 JSON 编解码失败。
var ErrMarshal = errors.New("xjson: marshal failed")

// Clone 通过 JSON 往返返回 v 的深拷贝。
func Clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return out, nil
}

// PrettyE 将任意值序列化为两空格缩进的 JSON 字符串。
func PrettyE(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return string(data), nil
}

// Pretty 同 PrettyE，失败时返回 "<marshal error: ...>"。
func Pretty(v any) string {
	s, err := PrettyE(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return s
}
