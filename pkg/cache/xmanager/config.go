package xmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FileConfig 是配置文件的根结构。
type FileConfig struct {
	Caches map[string]CacheConfig `koanf:"caches"`
}

// Cache 返回名为 name 的缓存配置。
func (f *FileConfig) Cache(name string) (CacheConfig, bool) {
	if f == nil {
		return CacheConfig{}, false
	}
	cc, ok := f.Caches[name]
	return cc, ok
}

// CacheConfig 是单个缓存在配置文件中的可配置部分。
type CacheConfig struct {
	ReadThrough       bool         `koanf:"read_through"`
	WriteThrough      bool         `koanf:"write_through"`
	StoreByValue      bool         `koanf:"store_by_value"`
	StatisticsEnabled bool         `koanf:"statistics"`
	ManagementEnabled bool         `koanf:"management"`
	Expiry            ExpiryConfig `koanf:"expiry"`
	Store             StoreConfig  `koanf:"store"`
	LoadAllWorkers    int          `koanf:"load_all_workers"`
	LoadAllQueue      int          `koanf:"load_all_queue"`

	// Sweep 为清理过期条目的 cron 表达式，如 "@every 1m" 或 "*/5 * * * *"。
	// 空值表示不定期清理。
	Sweep string `koanf:"sweep"`
}

// ExpiryConfig 描述内置过期策略。Policy 见 xexpiry.Parse。
type ExpiryConfig struct {
	Policy string        `koanf:"policy"`
	TTL    time.Duration `koanf:"ttl"`
}

// StoreConfig 描述后端存储，见 BuildStore。
type StoreConfig struct {
	// Type 为 memory、lru、ristretto 或 redis，空值等价于 memory。
	Type string `koanf:"type"`

	// Size 为 lru 的容量或 ristretto 的最大成本。
	Size int `koanf:"size"`

	// Addr 与 DB 用于 redis。
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password" json:"-"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`

	LockShards int `koanf:"lock_shards"`

	// DistributedLockTTL > 0 时 redis 存储启用跨进程 key 锁。
	DistributedLockTTL time.Duration `koanf:"distributed_lock_ttl"`
}

// Build 把 ExpiryConfig 转换为过期策略。
func (e ExpiryConfig) Build() (xexpiry.Policy, error) {
	p, err := xexpiry.Parse(e.Policy, e.TTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return p, nil
}

// Apply 用 cc 中的开关与过期策略覆盖 cfg。
func Apply[K comparable, V any](cc CacheConfig, cfg *xcache.Config[K, V]) error {
	policy, err := cc.Expiry.Build()
	if err != nil {
		return err
	}
	if cc.Sweep != "" {
		if _, err := sweepParser.Parse(cc.Sweep); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSweep, err)
		}
	}
	cfg.ReadThrough = cc.ReadThrough
	cfg.WriteThrough = cc.WriteThrough
	cfg.StoreByValue = cc.StoreByValue
	cfg.StatisticsEnabled = cc.StatisticsEnabled
	cfg.ManagementEnabled = cc.ManagementEnabled
	cfg.ExpiryPolicy = policy
	return nil
}

// Options 返回 cc 对应的 xcache 运行时选项。
func (cc CacheConfig) Options() []xcache.Option {
	if cc.LoadAllWorkers > 0 && cc.LoadAllQueue > 0 {
		return []xcache.Option{xcache.WithLoadAllPool(cc.LoadAllWorkers, cc.LoadAllQueue)}
	}
	return nil
}

// LoadConfig 从文件读取配置，按扩展名识别格式（.yaml/.yml 或 .json）。
func LoadConfig(path string) (*FileConfig, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return ParseConfig(data, format)
}

// ParseConfig 从字节数据解析配置。空数据得到空配置。
func ParseConfig(data []byte, format Format) (*FileConfig, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, ErrUnsupportedFormat
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	var fc FileConfig
	if err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	for name, cc := range fc.Caches {
		if _, err := cc.Expiry.Build(); err != nil {
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		if cc.Sweep != "" {
			if _, err := sweepParser.Parse(cc.Sweep); err != nil {
				return nil, fmt.Errorf("cache %q: %w: %w", name, ErrInvalidSweep, err)
			}
		}
	}
	return &fc, nil
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}
