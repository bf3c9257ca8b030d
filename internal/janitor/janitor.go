package janitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"ps2cfg/internal/pkg"

	"go.uber.org/zap"
)

// Janitor 定期删除目录中过期的临时文件，keep 中的文件名不会被删除
type Janitor struct {
	dirs     []string
	interval time.Duration
	maxAge   time.Duration
	keep     []string
	now      func() time.Time
}

func New(cfg pkg.JanitorConfig, dirs ...string) *Janitor {
	return &Janitor{
		dirs:     dirs,
		interval: cfg.Interval,
		maxAge:   cfg.MaxAge,
		keep:     cfg.Keep,
		now:      time.Now,
	}
}

// Sweep 执行一次清理，返回删除的文件
func (j *Janitor) Sweep(ctx context.Context) ([]string, error) {
	log := pkg.LoggerFromContext(ctx)
	cutoff := j.now().Add(-j.maxAge)
	var removed []string
	for _, dir := range j.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("读取目录 %s 失败: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || slices.Contains(j.keep, e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				log.Warn("删除过期文件失败", zap.String("path", path), zap.Error(err))
				continue
			}
			removed = append(removed, path)
		}
	}
	if len(removed) > 0 {
		log.Info("清理过期文件", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// Start 按间隔清理直到 ctx 结束，错误通过 context 上的错误通道上报
func (j *Janitor) Start(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.Sweep(ctx); err != nil {
					pkg.LoggerFromContext(ctx).Error("janitor sweep failed", zap.Error(err))
					pkg.ReportErr(ctx, err)
				}
			}
		}
	}()
}
