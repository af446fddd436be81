package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/cli"
)

var carriersCmd = &cobra.Command{
	Use:     "carriers",
	Aliases: []string{"carrier"},
	Short:   "Manage carrier rules",
}

var carriersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List builtin and custom carrier rules",
	Args:    cobra.NoArgs,
	RunE:    runCarriersList,
}

var carriersAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a custom carrier rule",
	Long: `Add stores a custom carrier rule. The key is the uppercased name and the
search criteria default to (FROM "NAME").`,
	Example: `  parcel-tracker carriers add paketda --pattern '\bPD\d{8}\b' \
      --eta-string 'Zustellung am' --eta-pattern '\d{2}\.\d{2}\.\d{4}' \
      --status 'unterwegs,zugestellt' --link 'https://paketda.de/track?nr='`,
	Args: cobra.ExactArgs(1),
	RunE: runCarriersAdd,
}

var carriersRemoveCmd = &cobra.Command{
	Use:     "remove KEY",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a custom carrier rule",
	Args:    cobra.ExactArgs(1),
	RunE:    runCarriersRemove,
}

var (
	listActiveOnly bool

	addSearch     string
	addPattern    string
	addETAString  string
	addETAPattern string
	addStatus     string
	addLink       string
)

func init() {
	carriersListCmd.Flags().BoolVar(&listActiveOnly, "active", false, "only show carriers that are scanned")

	carriersAddCmd.Flags().StringVar(&addSearch, "search", "", "IMAP search criteria (default (FROM \"NAME\"))")
	carriersAddCmd.Flags().StringVar(&addPattern, "pattern", "", "tracking number regular expression")
	carriersAddCmd.Flags().StringVar(&addETAString, "eta-string", "", "text that precedes the delivery estimate")
	carriersAddCmd.Flags().StringVar(&addETAPattern, "eta-pattern", "", "delivery estimate regular expression")
	carriersAddCmd.Flags().StringVar(&addStatus, "status", "", "comma-separated status phrases")
	carriersAddCmd.Flags().StringVar(&addLink, "link", "", "public tracking link template")
	_ = carriersAddCmd.MarkFlagRequired("pattern")

	carriersCmd.AddCommand(carriersListCmd, carriersAddCmd, carriersRemoveCmd)
	rootCmd.AddCommand(carriersCmd)
}

func runCarriersList(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	active := make(map[string]bool, len(a.cfg.Carrier.Keys))
	for _, key := range a.cfg.Carrier.Keys {
		active[key] = true
	}

	rows := []cli.CarrierRow{}
	for _, rule := range a.registry.List() {
		if listActiveOnly && !active[rule.Key] {
			continue
		}
		rows = append(rows, cli.CarrierRow{Rule: rule, HasAPI: rule.HasAPI(), Active: active[rule.Key]})
	}
	return formatter.PrintCarriers(rows)
}

func runCarriersAdd(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	rule := carriers.NewCustomRule(args[0], addSearch, addPattern)
	rule.ETAString = addETAString
	rule.ETADatePattern = addETAPattern
	rule.StatusStrings = carriers.ParseStatusStrings(addStatus)
	rule.TrackingLinkURL = addLink

	if _, builtin := carriers.BuiltinRules()[rule.Key]; builtin {
		err := fmt.Errorf("carrier %s is builtin, use a configuration override instead", rule.Key)
		formatter.PrintError(err)
		return err
	}

	if err := a.db.Carriers.Create(cmd.Context(), rule); err != nil {
		formatter.PrintError(err)
		return err
	}

	formatter.PrintSuccess(fmt.Sprintf("Added carrier %s with search %s", rule.Key, rule.SearchCriteria))
	return nil
}

func runCarriersRemove(cmd *cobra.Command, args []string) error {
	formatter := newFormatter(cmd)

	a, err := newApp(cmd)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	defer a.Close()

	key := strings.ToUpper(strings.TrimSpace(args[0]))
	if err := a.db.Carriers.Delete(cmd.Context(), key); err != nil {
		formatter.PrintError(err)
		return err
	}

	formatter.PrintSuccess(fmt.Sprintf("Removed carrier %s", key))
	return nil
}
