package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/fortiwatch/internal/config"
	"github.com/crimson-sun/fortiwatch/internal/connector"
)

var (
	confSettings config.Settings
	confMock     bool
	confShow     bool
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save appliance connection settings",
	Long: `Save the appliance connection settings and the mock-mode toggle to the
settings file. Only the flags given are changed; everything else keeps its
saved value.`,
	Example: `  fortiwatch configure --host fw.example.com --username admin --password secret --mock=false
  fortiwatch configure --mock
  fortiwatch configure --show`,
	RunE: runConfigure,
}

func init() {
	f := configureCmd.Flags()
	f.StringVar(&confSettings.Host, "host", "", "appliance host name or IP")
	f.StringVar(&confSettings.Port, "port", "", "appliance API port")
	f.StringVar(&confSettings.Protocol, "protocol", "", "http or https")
	f.StringVar(&confSettings.Username, "username", "", "API user")
	f.StringVar(&confSettings.Password, "password", "", "API password")
	f.IntVar(&confSettings.RefreshInterval, "interval", 0, "poll interval in seconds")
	f.BoolVar(&confSettings.Insecure, "insecure", false, "skip TLS certificate verification")
	f.BoolVar(&confMock, "mock", false, "use generated events instead of the appliance")
	f.BoolVar(&confShow, "show", false, "print the saved settings and exit")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore(settingsFile)
	if err != nil {
		return err
	}
	saved, err := store.LoadSettings()
	if err != nil {
		return err
	}
	s := config.DefaultSettings()
	if saved != nil {
		s = *saved
	}
	mock, err := store.LoadMockMode()
	if err != nil {
		return err
	}

	if confShow {
		printSettings(store.Path(), s, mock)
		return nil
	}

	f := cmd.Flags()
	if f.Changed("host") {
		s.Host = confSettings.Host
	}
	if f.Changed("port") {
		s.Port = confSettings.Port
	}
	if f.Changed("protocol") {
		s.Protocol = confSettings.Protocol
	}
	if f.Changed("username") {
		s.Username = confSettings.Username
	}
	if f.Changed("password") {
		s.Password = confSettings.Password
	}
	if f.Changed("interval") {
		s.RefreshInterval = confSettings.RefreshInterval
	}
	if f.Changed("insecure") {
		s.Insecure = confSettings.Insecure
	}
	if f.Changed("mock") {
		mock = confMock
	}

	cc := connector.ConnectorConfig{
		Protocol:     s.Protocol,
		Host:         s.Host,
		Port:         s.Port,
		PollInterval: s.RefreshInterval,
		Mock:         mock,
	}
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if err := store.SaveSettings(s); err != nil {
		return err
	}
	if err := store.SaveMockMode(mock); err != nil {
		return err
	}
	fmt.Printf("Settings saved to %s\n", store.Path())
	if cc.UseMock() {
		fmt.Println("Mock mode is active; run `fortiwatch configure --mock=false --host <host>` to poll an appliance.")
	}
	return nil
}

func printSettings(path string, s config.Settings, mock bool) {
	password := ""
	if s.Password != "" {
		password = "********"
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "file\t%s\n", path)
	fmt.Fprintf(w, "host\t%s\n", s.Host)
	fmt.Fprintf(w, "port\t%s\n", s.Port)
	fmt.Fprintf(w, "protocol\t%s\n", s.Protocol)
	fmt.Fprintf(w, "username\t%s\n", s.Username)
	fmt.Fprintf(w, "password\t%s\n", password)
	fmt.Fprintf(w, "interval\t%ds\n", s.RefreshInterval)
	fmt.Fprintf(w, "insecure\t%t\n", s.Insecure)
	fmt.Fprintf(w, "mock\t%t\n", mock)
	w.Flush()
}
