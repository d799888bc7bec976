package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulatePrice float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-anomaly",
	Short: "模拟一批异常记录并驱动告警链路",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 {
			return errors.New("--price 必须大于 0")
		}

		return getApp().SimulateAnomaly(cmd.Context(), simulatePrice)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 99.0, "异常记录使用的价格")
}
