package pkg

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// LogConfig 日志相关配置
type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
	Async      bool   `mapstructure:"async"` // 文件日志异步写入
}

// ServerConfig HTTP 服务相关配置
type ServerConfig struct {
	Port             string        `mapstructure:"port"`
	UploadDir        string        `mapstructure:"uploadDir"`
	OutputDir        string        `mapstructure:"outputDir"`
	DownloadWait     time.Duration `mapstructure:"downloadWait"`     // 两次检查之间的等待
	DownloadAttempts int           `mapstructure:"downloadAttempts"` // 等待文件就绪的最大次数
}

// DecoderConfig 解码器相关配置
type DecoderConfig struct {
	MaxBufferBytes int `mapstructure:"maxBufferBytes"` // 单个文件允许的最大字节数
	MaxPatches     int `mapstructure:"maxPatches"`     // 报告中输出的最大补丁条数
}

// GameDBConfig 游戏 hash 查询库配置
type GameDBConfig struct {
	Type     string `mapstructure:"type"` // sqlite|mysql|mongo
	Path     string `mapstructure:"path"`
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// ConverterConfig 外部转换程序配置
type ConverterConfig struct {
	Binary    string        `mapstructure:"binary"`
	InputDir  string        `mapstructure:"inputDir"`
	OutputDir string        `mapstructure:"outputDir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// JanitorConfig 临时文件清理配置
type JanitorConfig struct {
	Enable   bool          `mapstructure:"enable"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"maxAge"`
	Keep     []string      `mapstructure:"keep"`
}

// NotifyConfig 解码事件发布配置，config 按 type 交给对应的工厂解码
type NotifyConfig struct {
	Type   string                 `mapstructure:"type"`
	Enable bool                   `mapstructure:"enable"`
	Para   map[string]interface{} `mapstructure:"config"`
}

type Config struct {
	Version   string          `mapstructure:"version"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	GameDB    GameDBConfig    `mapstructure:"gamedb"`
	Converter ConverterConfig `mapstructure:"converter"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
	Notify    []NotifyConfig  `mapstructure:"notify"`
}

// 默认值，配置文件未给出时生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")
	v.SetDefault("log::level", "info")
	v.SetDefault("log::log_path", "/tmp/log-file.log")
	v.SetDefault("log::max_size", 64)
	v.SetDefault("log::max_backups", 3)
	v.SetDefault("log::max_age", 7)
	v.SetDefault("server::port", "3000")
	v.SetDefault("server::uploadDir", "/tmp")
	v.SetDefault("server::outputDir", "/tmp")
	v.SetDefault("server::downloadWait", time.Second)
	v.SetDefault("server::downloadAttempts", 10)
	v.SetDefault("decoder::maxBufferBytes", 16<<20)
	v.SetDefault("decoder::maxPatches", 31)
	v.SetDefault("gamedb::type", "sqlite")
	v.SetDefault("gamedb::path", "/tmp/games.db")
	v.SetDefault("gamedb::database", "netemu")
	v.SetDefault("converter::inputDir", "/tmp/configs")
	v.SetDefault("converter::outputDir", "/tmp")
	v.SetDefault("converter::timeout", time.Minute)
	v.SetDefault("janitor::interval", 2*time.Minute)
	v.SetDefault("janitor::maxAge", 10*time.Minute)
	v.SetDefault("janitor::keep", []string{"log-file.log", "games.db"})
}

// InitCommon 用于初始化全局配置
func InitCommon(configDir string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 设置 key 分隔符为 ::，文件名中的 . 会和默认分隔符冲突
	setDefaults(v)
	v.AutomaticEnv() // 读取环境变量
	// 遍历配置目录及其子目录中的所有文件
	err := filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}
		if d.IsDir() {
			return nil
		}

		// 只处理 .yaml 或 .yml 文件
		ext := filepath.Ext(filePath)
		if ext == ".yaml" || ext == ".yml" {
			v.SetConfigFile(filePath)
			// 读取并合并配置文件 (会覆盖之前的配置)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var common Config
	if err := v.Unmarshal(&common); err != nil {
		return nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	return &common, nil
}

type configKey struct{}

// WithConfig 将配置挂载到 context 上
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// ConfigFromContext 从 context 中提取配置指针
func ConfigFromContext(ctx context.Context) *Config {
	if config, ok := ctx.Value(configKey{}).(*Config); ok {
		return config
	}
	return nil
}
