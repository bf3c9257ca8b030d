package gamedb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ImportResult 导入统计
type ImportResult struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// ParseTSV 解析 "gameID\taltGameID\thash\tname" 格式的对照表。
// 名称中的制表符合并为空格，空行被跳过，字段不足的行计入 Skipped。
func ParseTSV(r io.Reader) ([]Game, int, error) {
	var (
		games   []Game
		skipped int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 4)
		if len(fields) < 3 || strings.TrimSpace(fields[0]) == "" {
			skipped++
			continue
		}
		g := Game{
			GameID:    strings.TrimSpace(fields[0]),
			AltGameID: strings.TrimSpace(fields[1]),
			Hash:      strings.TrimSpace(fields[2]),
		}
		if len(fields) == 4 {
			g.Name = strings.TrimSpace(strings.Join(strings.Split(fields[3], "\t"), " "))
		}
		games = append(games, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("读取对照表失败: %w", err)
	}
	return games, skipped, nil
}

// ImportTSV 解析对照表并写入存储。replace 为 true 时先删除旧表。
func ImportTSV(ctx context.Context, store Store, r io.Reader, replace bool, log *zap.Logger) (ImportResult, error) {
	games, skipped, err := ParseTSV(r)
	if err != nil {
		return ImportResult{}, err
	}
	if replace {
		exists, err := store.HasTable(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		if exists {
			if err := store.DropTable(ctx); err != nil {
				return ImportResult{}, fmt.Errorf("删除旧表失败: %w", err)
			}
			log.Info("dropped existing games table")
		}
	}
	if err := store.Upsert(ctx, games); err != nil {
		return ImportResult{}, err
	}
	log.Info("游戏对照表导入完成", zap.Int("rows", len(games)), zap.Int("skipped", skipped))
	return ImportResult{Rows: len(games), Skipped: skipped}, nil
}
