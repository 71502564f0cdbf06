package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduguardian/guardian/internal/daemon"
)

func init() {
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List the badge catalog with holder counts",
	RunE:  runBadges,
}

func runBadges(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	holders, err := d.DB.BadgeHolders(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tTIER\tXP\tHOLDERS")
	for _, b := range d.Engine.Catalog().Definitions() {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%d\t%d\n",
			b.ID, b.Icon, b.Name, b.Category, b.Tier, b.XPReward, holders[b.ID])
	}
	return w.Flush()
}
