package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/output"
	"github.com/crimson-sun/fortiwatch/internal/output/stdout"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
)

var (
	fetchTable  bool
	fetchSearch string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run a single fetch cycle and print the events",
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

		p, err := buildPipeline(cfg, nil)
		if err != nil {
			return err
		}
		defer p.Close()

		records, err := p.Cycle(cmd.Context())
		if err != nil {
			return err
		}
		records = pipeline.Filter(records, fetchSearch)

		if fetchTable {
			printTable(records)
			return nil
		}
		return output.WriteAll(context.Background(), stdout.New(cfg.Output.Pretty), records)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchTable, "table", false, "print a table instead of NDJSON")
	fetchCmd.Flags().StringVar(&fetchSearch, "search", "", "only print events whose message or source contains this text")
	rootCmd.AddCommand(fetchCmd)
}

func printTable(records []model.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tSOURCE\tACTION\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Timestamp, r.Level, r.Source, r.Action, r.Message)
	}
	w.Flush()

	s := pipeline.Summarize(records)
	fmt.Printf("\n%d events: %d threats, %d blocked, %d warnings\n", s.Total, s.Threats, s.Blocked, s.Warnings())
}
