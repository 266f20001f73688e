package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/config"
	"github.com/wwwzy/medfleet/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd 是没有子命令时调用的基础命令
var rootCmd = &cobra.Command{
	Use:   "medfleet",
	Short: "MedFleet 是一个医疗物联网设备与告警管理服务",
	Long: `MedFleet 维护被监控设备的登记信息、遥测采样与告警生命周期，
并通过 HTTP 接口对外提供查询与操作。`,
}

// Execute 将所有子命令添加到根命令并适当设置标志。
// 这由 main.main() 调用。它只需要对 rootCmd 调用一次。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件（默认按 ./config.yaml、./configs/config.yaml、$HOME/.medfleet/config.yaml 搜索）")
}

// initConfig 读取配置文件和环境变量（如果已设置）。
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
}

// newLogger 按配置构建 logger；配置未加载时返回 Nop。
func newLogger() *zap.Logger {
	if cfg == nil {
		return zap.NewNop()
	}
	return logging.New(cfg.Log)
}
