package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"sheet2frames/background"
	"sheet2frames/batch"
	"sheet2frames/grid"
	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect inputs...",
	Short: "Show sheet sizes, square-cell grid candidates and the border color",
	Long: `Inspect decodes each input and prints its size, the grids whose cells are square
(largest cells first) and the estimated background color, for choosing --grid and --bg.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 4, "grid candidates listed per input (0 = all)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tSIZE\tBACKGROUND\tGRIDS")

	failed := 0
	for _, in := range batch.Resolve(args) {
		if in.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t-\t-\t%s: %v\n", in.Path, sftypes.KindOf(in.Err), in.Err)
			continue
		}
		img, err := imaging.Open(in.Path, imaging.AutoOrientation(true))
		if err != nil {
			failed++
			logger.WithError(err).WithField("input", in.Path).Debug("Decode failed")
			fmt.Fprintf(tw, "%s\t-\t-\t%v\n", in.Path, err)
			continue
		}

		b := img.Bounds()
		var grids []string
		for _, c := range grid.Candidates(b.Dx(), b.Dy(), inspectLimit) {
			grids = append(grids, fmt.Sprintf("%s (%dx%d)", c.Grid, c.Cell.X, c.Cell.Y))
		}
		bg := sftypes.HexColor(background.EstimateBackground(img))
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\n", in.Path, b.Dx(), b.Dy(), bg, strings.Join(grids, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d inputs could not be inspected", failed)
	}
	return nil
}
