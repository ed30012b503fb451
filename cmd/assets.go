package cmd

import (
	"fmt"
	"io"
	"sort"

	"Romaly/server"
	"Romaly/storage"

	"github.com/spf13/cobra"
)

var (
	assetsPrefix string
	assetsStats  bool
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "上传文件管理",
	Long:  `列出当前存储后端（本地目录或MinIO存储桶）中的上传文件，或查看统计信息。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "存储后端: %s\n", cfg.AssetBackend)

		opened, err := server.OpenAssets(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("无法打开存储: %w", err)
		}
		lister, ok := opened.Store.(storage.Lister)
		if !ok {
			return fmt.Errorf("存储后端 %s 不支持列出文件", cfg.AssetBackend)
		}

		objects, err := lister.List(cmd.Context(), assetsPrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}
		if assetsStats {
			printStats(out, storage.Summarize(objects))
			return nil
		}
		printObjects(out, objects)
		return nil
	},
}

func printObjects(out io.Writer, objects []storage.ObjectInfo) {
	if len(objects) == 0 {
		fmt.Fprintln(out, "没有文件")
		return
	}
	for _, obj := range objects {
		fmt.Fprintf(out, "%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "共 %d 个文件\n", len(objects))
}

func printStats(out io.Writer, stats storage.BucketStats) {
	fmt.Fprintf(out, "文件总数: %d\n", stats.TotalObjects)
	fmt.Fprintf(out, "总大小: %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(out, "最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}
	kinds := make([]string, 0, len(stats.PerKind))
	for k := range stats.PerKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-10s %s\n", k, storage.FormatSize(stats.PerKind[k]))
	}
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().StringVarP(&assetsPrefix, "prefix", "p", "", "按前缀过滤文件，例如 audio/ 或 covers/")
	assetsCmd.Flags().BoolVarP(&assetsStats, "stats", "s", false, "显示统计信息")

	assetsCmd.Example = `  # 列出所有文件
  romaly assets

  # 只看封面
  romaly assets -p covers/

  # 统计信息
  romaly assets -s`
}
