package xexpiry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownPolicy 表示无法识别的策略名称。
var ErrUnknownPolicy = errors.New("xexpiry: unknown policy")

// Parse 根据名称和时长构造内置策略，用于配置文件。
// 名称不区分大小写：eternal、created、accessed、modified、touched。
// 空名称等价于 eternal。
func Parse(name string, d time.Duration) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "eternal":
		return EternalPolicy(), nil
	case "created":
		return Created(d), nil
	case "accessed":
		return Accessed(d), nil
	case "modified":
		return Modified(d), nil
	case "touched":
		return Touched(d), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}
