package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/mood"
)

func newCatalogCmd(a *app) *cobra.Command {
	var regions int

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Summarize the track catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.loadCatalog()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s\n", c.Summarize())

			if !cmd.Flags().Changed("regions") {
				return nil
			}
			found, err := c.MoodRegions(regions)
			if err != nil {
				return fmt.Errorf("clustering catalog: %w", err)
			}
			printRegions(out, found)
			return nil
		},
	}

	cmd.Flags().IntVarP(&regions, "regions", "r", catalog.DefaultRegions, "Group the catalog into this many mood regions")
	return cmd
}

func printRegions(out io.Writer, regions []catalog.Region) {
	fmt.Fprintln(out)
	rend := lipgloss.NewRenderer(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tCATEGORY\tTRACKS\tVAL\tENERGY\tTEMPO\t")
	for _, r := range regions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			r.Name, r.Category.Name, r.Size,
			r.Centroid[mood.Valence], r.Centroid[mood.Energy], r.Centroid[mood.Tempo],
			energySwatch(rend, r.Centroid))
	}
	_ = tw.Flush()
}
