package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile      string
	settingsFile string
	logLevel     string
	logFormat    string
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:           "fortiwatch",
	Short:         "FortiGate security log monitor",
	Long:          `fortiwatch polls a FortiGate appliance for security events and shows them in a terminal dashboard.`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.fortiwatch/config.yaml)")
	pf.StringVar(&settingsFile, "settings", "", "saved settings file (default: ~/.fortiwatch/settings.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
