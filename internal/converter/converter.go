package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"ps2cfg/internal/pkg"

	"go.uber.org/zap"
)

// ErrNotConfigured 未配置转换程序
var ErrNotConfigured = errors.New("converter binary not configured")

const defaultTimeout = 2 * time.Minute

// Result 一次转换的输出
type Result struct {
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// Runner 调用外部转换程序：<binary> --verbose -1 <inputDir> <outputDir>
type Runner struct {
	cfg pkg.ConverterConfig
	log *zap.Logger
}

func NewRunner(cfg pkg.ConverterConfig, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Args 传给转换程序的参数
func (r *Runner) Args() []string {
	return []string{"--verbose", "-1", r.cfg.InputDir, r.cfg.OutputDir}
}

func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.cfg.Binary == "" {
		return Result{}, ErrNotConfigured
	}
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Binary, r.Args()...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}
	if err != nil {
		r.log.Error("转换程序执行失败", zap.String("binary", r.cfg.Binary), zap.Error(err), zap.String("output", res.Output))
		return res, fmt.Errorf("run %s: %w", r.cfg.Binary, err)
	}
	r.log.Info("转换完成", zap.Duration("cost", res.Duration))
	return res, nil
}
