// Package config 读取回收器配置（YAML）。
package config

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/inhies/go-bytesize"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v2"

	"gc_master/internal/errs"
)

// Size 字节数，YAML 中可写作 "4MB" 或纯整数。
type Size uint64

// UnmarshalYAML 接受整数或带单位的字符串。
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := ParseSize(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalYAML 能整除时输出 "4MB" 这类写法，否则输出整数。
func (s Size) MarshalYAML() (interface{}, error) {
	for _, u := range []struct {
		size bytesize.ByteSize
		name string
	}{{bytesize.GB, "GB"}, {bytesize.MB, "MB"}, {bytesize.KB, "KB"}} {
		if uint64(s) >= uint64(u.size) && uint64(s)%uint64(u.size) == 0 {
			return bytesize.ByteSize(s).Format("%.0f", u.name, false), nil
		}
	}
	return uint64(s), nil
}

func (s Size) String() string {
	return bytesize.ByteSize(s).String()
}

// ParseSize 解析 "1048576"、"64KB"、"1 MB" 等写法。
func ParseSize(raw string) (Size, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return Size(n), nil
	}
	b, err := bytesize.Parse(raw)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrBadArgument, "size %q: %v", raw, err)
	}
	return Size(b), nil
}

// Config 回收器配置。
type Config struct {
	HeapSize   Size   `yaml:"heap_size"`
	HeaderSize uint64 `yaml:"header_size"`
	PoolChunk  int    `yaml:"pool_chunk"`
	TableChunk int    `yaml:"table_chunk"`
	Mmap       bool   `yaml:"mmap"`
	Backing    string `yaml:"backing_file,omitempty"`
	Finalizers bool   `yaml:"run_finalizers"`
	Verify     bool   `yaml:"verify"`
	LogLevel   string `yaml:"log_level"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		HeapSize:   1 << 20,
		HeaderSize: 16,
		PoolChunk:  64,
		TableChunk: 64,
		Mmap:       true,
		LogLevel:   "info",
	}
}

// Parse 在默认配置之上解析 YAML，未出现的字段保持默认值。
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "config: parse")
	}
	return c, nil
}

// Load 读取并解析配置文件。
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	return Parse(data)
}

// Marshal 输出 YAML。
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate 检查配置，pageSize 为堆大小须对齐的页大小。
func (c Config) Validate(pageSize uint64) error {
	switch {
	case c.HeapSize == 0 || uint64(c.HeapSize)%pageSize != 0:
		return errors.Wrapf(errs.ErrBadArgument, "heap_size %d must be a positive multiple of page size %d", uint64(c.HeapSize), pageSize)
	case c.HeaderSize%8 != 0:
		return errors.Wrapf(errs.ErrBadArgument, "header_size %d must be a multiple of 8", c.HeaderSize)
	case c.PoolChunk <= 0 || c.TableChunk <= 0:
		return errors.Wrapf(errs.ErrBadArgument, "pool_chunk %d and table_chunk %d must be positive", c.PoolChunk, c.TableChunk)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level 解析 log_level。
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Wrapf(errs.ErrBadArgument, "log_level %q", c.LogLevel)
	}
	return l, nil
}

// Logger 按 log_level 构造写往 w 的文本日志。
func (c Config) Logger(w io.Writer) *slog.Logger {
	l, err := c.Level()
	if err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
