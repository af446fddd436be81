package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"parcel-tracking/internal/cli"
	"parcel-tracking/internal/workers"
)

var (
	scanCarriers   []string
	scanMaxAgeDays int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the mailbox once and print the tracking records",
	Long: `Scan runs a single poll: every configured carrier is searched in the
mailbox, tracking numbers, delivery estimates and statuses are extracted, the
records are enriched through carrier APIs where configured and printed sorted
by tracking number.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVar(&scanCarriers, "carriers", nil, "carrier keys to scan (overrides configuration)")
	scanCmd.Flags().IntVar(&scanMaxAgeDays, "max-age-days", 0, "only consider mails newer than this many days")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	if len(scanCarriers) > 0 {
		a.cfg.Carrier.Keys = make([]string, 0, len(scanCarriers))
		for _, key := range scanCarriers {
			a.cfg.Carrier.Keys = append(a.cfg.Carrier.Keys, strings.ToUpper(strings.TrimSpace(key)))
		}
	}
	if scanMaxAgeDays > 0 {
		a.cfg.Scan.MaxAgeDays = scanMaxAgeDays
	}

	coordinator, err := a.newCoordinator(cmd.Context())
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	var spinner *cli.ProgressSpinner
	if !quiet && format != cli.FormatJSON {
		spinner = cli.NewProgressSpinner("Scanning mailbox", noColor)
		spinner.Start()
	}
	snapshot, err := coordinator.Run(cmd.Context())
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		formatter.PrintError(err)
		if errors.Is(err, workers.ErrPartialScan) {
			if perr := formatter.PrintSnapshot(snapshot); perr != nil {
				return perr
			}
		}
		return err
	}

	return formatter.PrintSnapshot(snapshot)
}
