package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/email"
	"parcel-tracking/internal/workers"
)

var (
	extractCarrier string
	extractEnrich  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [flags] FILE.eml...",
	Short: "Extract tracking records from saved mail files",
	Long: `Extract runs the mailbox extraction on saved RFC 5322 files instead of a
live mailbox. Files are treated as newest last, so when several files carry
the same tracking number the last one wins. Useful for testing custom carrier
rules.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractCarrier, "carrier", "c", "DHL", "carrier rule to apply")
	extractCmd.Flags().BoolVar(&extractEnrich, "enrich", false, "query the carrier API for every record")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	key := strings.ToUpper(strings.TrimSpace(extractCarrier))
	rule, ok := a.registry.Get(key)
	if !ok {
		err := fmt.Errorf("%w: %s", workers.ErrUnknownCarrier, key)
		formatter.PrintError(err)
		return err
	}
	compiled, err := rule.Compile()
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	req := workers.ScanRequest{
		Folder:         "files",
		SearchCriteria: compiled.SearchCriteria,
		Rule:           compiled,
	}
	if extractEnrich {
		factory, err := a.newFactory(cmd.Context())
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		if enricher, ok := factory.ForRule(rule); ok {
			req.Enricher = enricher
		} else {
			a.logger.Warn("Carrier has no enrichment API", "carrier", key)
		}
	}

	scanner := workers.NewScanner(email.NewFileMailbox(args...), nil, a.logger)
	records, err := scanner.Scan(cmd.Context(), req)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TrackingNumber < records[j].TrackingNumber
	})
	workers.FillServiceURLs(records, map[string]*carriers.CompiledRule{compiled.Key: compiled})

	return formatter.PrintRecords(records)
}
