package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

var (
	esLoad loadFlags
	esJSON bool
)

var explainSpikeCmd = &cobra.Command{
	Use:   "explain-spike <dataset-id|file> [anomaly-index]",
	Short: "Attribute a spike anomaly to its biggest contributors",
	Long: `Compares the spike bucket with the bucket before it and breaks the change
down by a categorical column. Without an index the first spike is used;
anomaly indexes are listed by "instadash analyze".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := resolveSnapshot(args[0], &esLoad)
		if err != nil {
			return err
		}
		var idx int
		if len(args) == 2 {
			i, err := strconv.Atoi(args[1])
			if err != nil {
				return apperr.Inputf("invalid anomaly index %q", args[1])
			}
			idx = i
		} else {
			spikes := snap.Analysis.Spikes()
			if len(spikes) == 0 {
				return apperr.Input("no spike anomalies in this dataset")
			}
			idx = spikes[0]
		}
		ans, err := query.ExplainSpike(snap, idx)
		if err != nil {
			return err
		}
		metrics.CountAnswer("explain_spike", ans.Origin)
		if esJSON {
			return printJSON(cmd.OutOrStdout(), ans)
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeAnomaly(idx, snap.Analysis.Anomalies[idx]))
		printAnswer(cmd.OutOrStdout(), ans)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainSpikeCmd)
	esLoad.register(explainSpikeCmd)
	explainSpikeCmd.Flags().BoolVar(&esJSON, "json", false, "print the answer as JSON")
}
