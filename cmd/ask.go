package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

const maxQuestionLen = 2000

var (
	askLoad  loadFlags
	askJSON  bool
	askNoLLM bool
)

var askCmd = &cobra.Command{
	Use:   "ask <dataset-id|file> <question...>",
	Short: "Ask a question about a dataset",
	Long: `Ask answers from the data first (top-N, sum/mean/min/max, trends, row
counts). Other questions go to the configured model when an API key is set,
and to built-in heuristics otherwise.`,
	Example: `  instadash ask sales.csv "top 5 region by revenue"
  instadash ask 3f0c… "what drove the spike in March?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		if question == "" || len([]rune(question)) > maxQuestionLen {
			return apperr.Inputf("question must be 1-%d characters", maxQuestionLen)
		}
		snap, err := resolveSnapshot(args[0], &askLoad)
		if err != nil {
			return err
		}
		var fb query.Fallback
		if !askNoLLM {
			fb = newFallback()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ans := query.AnswerQuestion(ctx, snap, question, fb, queryOptions())
		metrics.CountAnswer("chat", ans.Origin)
		if askJSON {
			return printJSON(cmd.OutOrStdout(), ans)
		}
		printAnswer(cmd.OutOrStdout(), ans)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askLoad.register(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	askCmd.Flags().BoolVar(&askNoLLM, "no-llm", false, "never call the model; use computed answers and heuristics only")
}
