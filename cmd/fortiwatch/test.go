package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the appliance is reachable with the configured credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		closeLog, err := setupLogging(cfg, false)
		if err != nil {
			return err
		}
		defer closeLog()

		conn, err := openConnector(cfg)
		if err != nil {
			return err
		}
		v := conn.Test(cmd.Context())
		fmt.Println(v.Message)
		if !v.Success {
			return fmt.Errorf("connection test against %s failed", describe(cfg))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
