package command

import (
	"context"
	"fmt"
	"os"

	"ps2cfg/internal/artifact"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/pkg"
	"ps2cfg/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configDir string
	verbose   bool
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "ps2cfg",
		Short:         "netemu patch configuration decoder",
		Long:          `ps2cfg decodes netemu patch configuration files into sections, PNACH lines and 0x2C patch headers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", "config", "配置目录")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(
		newDecodeCommand(opts),
		newPatchesCommand(opts),
		newOpcodesCommand(),
		newImportDBCommand(opts),
		newConvertCommand(opts),
	)
	return rootCmd
}

// setup 加载配置并把配置和日志挂载到 context 上
func (o *rootOptions) setup(cmd *cobra.Command) (context.Context, *pkg.Config, error) {
	config, err := pkg.InitCommon(o.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log := zap.NewNop()
	if o.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	ctx := pkg.WithConfig(cmd.Context(), config)
	ctx = pkg.WithLogger(ctx, log)
	return ctx, config, nil
}

// newService 命令行下的 PatchService；数据库打不开时 hash 显示为未解析
func newService(ctx context.Context, config *pkg.Config, outDir string, withDB bool) (*service.PatchService, func(), error) {
	log := pkg.LoggerFromContext(ctx)
	catalog, err := netemu.NewCatalog()
	if err != nil {
		return nil, nil, err
	}
	deps := service.Deps{
		Decoder: netemu.NewDecoder(catalog, log),
		Writer:  artifact.NewWriter(outDir),
		Metrics: pkg.NewMetrics(),
		Config:  config.Decoder,
		Log:     log,
	}
	closeFn := func() {}
	if withDB {
		store, err := gamedb.Open(ctx, config.GameDB)
		if err != nil {
			log.Warn("游戏数据库不可用，hash 将显示为未解析", zap.Error(err))
		} else {
			deps.Lookup = gamedb.NewResolver(store, log)
			closeFn = func() { _ = store.Close(context.Background()) }
		}
	}
	return service.New(deps), closeFn, nil
}

func readInput(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件 %s 失败: %w", path, err)
	}
	return buf, nil
}
