package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"ps2cfg/internal/converter"
	"ps2cfg/internal/gamedb"
	"ps2cfg/internal/netemu"
	"ps2cfg/internal/pkg"
	"ps2cfg/internal/report"
	"ps2cfg/internal/service"

	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newDecodeCommand decode <file>
func newDecodeCommand(opts *rootOptions) *cobra.Command {
	var filter, format, gameID string
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a configuration file into sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, config, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			buf, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(ctx, config, os.TempDir(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			switch format {
			case "text":
				sections, _, err := svc.Filtered(buf, filter)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), report.SectionsText(svc.Decoder.Catalog(), sections))
				return nil
			case "json":
				if gameID == "" {
					gameID = gamedb.GameIDFromFilename(filepath.Base(args[0]))
				}
				doc, err := svc.Decode(ctx, gameID, buf, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			default:
				return fmt.Errorf("unknown format %q (json|text)", format)
			}
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", `过滤表达式，例如 'Opcode == 0x0A && Section > 1'`)
	cmd.Flags().StringVar(&format, "format", "json", "输出格式 json|text")
	cmd.Flags().StringVar(&gameID, "game-id", "", "游戏 ID，默认取文件名去掉 .CONFIG 后缀")
	return cmd
}

// newPatchesCommand patches <file>
func newPatchesCommand(opts *rootOptions) *cobra.Command {
	var strategyName, format, outDir string
	cmd := &cobra.Command{
		Use:   "patches <file>",
		Short: "Extract 0x0A patches as PNACH / 0x2C report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, config, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			strategy, err := service.ParseStrategy(strategyName)
			if err != nil {
				return err
			}
			buf, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(ctx, config, outDir, true)
			if err != nil {
				return err
			}
			defer closeFn()

			name := filepath.Base(args[0])
			if outDir != "" {
				res, err := svc.ProcessFile(ctx, name, buf, strategy)
				if err != nil {
					return err
				}
				hash := res.Hash
				if !res.Resolved {
					hash = report.UnresolvedHash
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d patches, hash %s)\n", res.Bundle.ZipPath, res.Patches, hash)
				return nil
			}

			switch format {
			case "text":
				r, _, err := svc.BuildReport(ctx, name, buf, strategy)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), r.Text())
				return nil
			case "json":
				entries, err := svc.BuildJSON(ctx, name, buf, strategy)
				if err != nil {
					return err
				}
				return writeJSON(cmd, entries)
			default:
				return fmt.Errorf("unknown format %q (json|text)", format)
			}
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", string(service.StrategyLegacy), "0x0A 提取方式 legacy|catalog")
	cmd.Flags().StringVar(&format, "format", "text", "输出格式 json|text")
	cmd.Flags().StringVar(&outDir, "out", "", "写出 .txt/.bin 并打包 zip 到该目录")
	return cmd
}

// newOpcodesCommand opcodes
func newOpcodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "opcodes",
		Short: "List the opcode catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := netemu.NewCatalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPCODE\tNAME\tLAYOUT\tDESCRIPTION")
			for _, d := range catalog.Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", netemu.Hex(uint64(d.Opcode), 1), d.Name, d.Layout.Kind, d.Description)
			}
			return w.Flush()
		},
	}
}

// newImportDBCommand importdb <tsv>
func newImportDBCommand(opts *rootOptions) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "importdb <tsv>",
		Short: "Import the game ID / hash table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, config, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := gamedb.Open(ctx, config.GameDB)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			res, err := gamedb.ImportTSV(ctx, store, f, replace, pkg.LoggerFromContext(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows, skipped %d\n", res.Rows, res.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "导入前删除旧表")
	return cmd
}

// newConvertCommand convert
func newConvertCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Run the external converter over the configured input directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, config, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			res, err := converter.NewRunner(config.Converter, pkg.LoggerFromContext(ctx)).Run(ctx)
			fmt.Fprint(cmd.OutOrStdout(), res.Output)
			return err
		},
	}
}
