package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wwwzy/medfleet/internal/retention"
	"github.com/wwwzy/medfleet/internal/storage"
)

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "管理存储和数据库",
	Long:  `提供查看数据库概况、清理审计记录的命令。`,
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "显示数据库统计概况",
	RunE:  runInfo,
}

// pruneAuditCmd represents the prune-audit command
var pruneAuditCmd = &cobra.Command{
	Use:   "prune-audit",
	Short: "清理审计记录",
	Long:  `根据用户指定的保留条数或天数，立即清理旧的审计记录。设备、采样与告警不受影响。`,
	RunE:  runPruneAudit,
}

var (
	keepAuditCount int
	keepAuditDays  int
)

func init() {
	pruneAuditCmd.Flags().IntVar(&keepAuditCount, "keep", 0, "保留最近的 N 条记录")
	pruneAuditCmd.Flags().IntVar(&keepAuditDays, "days", 0, "保留最近 N 天的记录")

	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(infoCmd)
	storageCmd.AddCommand(pruneAuditCmd)
}

func runPruneAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if keepAuditCount <= 0 && keepAuditDays <= 0 {
		_ = cmd.Usage()
		return fmt.Errorf("必须指定 --keep 或 --days")
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer store.Close()

	// 复用后台清理任务的逻辑，只执行一轮。
	collector, err := retention.NewCollector(store, retention.Config{
		KeepDays:   keepAuditDays,
		KeepLatest: keepAuditCount,
		BatchRows:  cfg.Retention.BatchRows,
	}, newLogger())
	if err != nil {
		return err
	}

	fmt.Println("正在清理审计记录...")
	deleted, err := collector.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("清理失败: %w", err)
	}

	remaining, countErr := store.CountAuditRecords(ctx)
	fmt.Println(renderPanel("审计记录清理完成", []row{
		{label: "已删除", value: fmt.Sprintf("%d", deleted)},
		countRow("剩余", remaining, countErr),
	}))
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// 1. 获取数据库文件信息
	dbSizeStr := "in-memory"
	if !cfg.Storage.InMemory {
		dbPath := cfg.Storage.Path
		if absPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absPath
		}
		info, err := os.Stat(dbPath)
		switch {
		case os.IsNotExist(err):
			dbSizeStr = "不存在（首次启动时创建）"
		case err != nil:
			dbSizeStr = fmt.Sprintf("error: %v", err)
		default:
			dbSizeStr = fmt.Sprintf("%.2f MB (%s)", float64(info.Size())/1024/1024, dbPath)
		}
	}

	// 2. 连接数据库
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("数据库文件: %s\n", dbSizeStr)
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer store.Close()

	// 3. 获取统计信息
	devices, devErr := store.CountDevices(ctx)
	samples, sampleErr := store.CountMetricSamples(ctx)
	alerts, alertErr := store.CountAlerts(ctx)
	audits, auditErr := store.CountAuditRecords(ctx)

	rows := []row{
		{label: "数据库文件", value: dbSizeStr},
		countRow("Devices", devices, devErr),
		countRow("MetricSamples", samples, sampleErr),
		countRow("Alerts", alerts, alertErr),
	}
	if byStatus, err := store.CountAlertsByStatus(ctx); err == nil {
		for _, status := range []string{storage.AlertStatusActive, storage.AlertStatusAcknowledged, storage.AlertStatusResolved} {
			rows = append(rows, row{label: "  " + status, value: fmt.Sprintf("%d", byStatus[status])})
		}
	}
	rows = append(rows, countRow("AuditRecords", audits, auditErr))

	// 4. 格式化输出
	fmt.Println(renderPanel("MedFleet 存储概况", rows))
	return nil
}
