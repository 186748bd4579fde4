package report

import (
	"fmt"
	"os"
	"strings"

	"alignstudio/pkg/types"
)

func BuildMarkdown(s Summary, tail []types.RunEvent) string {
	var b strings.Builder
	b.WriteString("# Alignment Run Report\n\n")
	b.WriteString(fmt.Sprintf("- Run: `%s`\n", s.RunID))
	b.WriteString(fmt.Sprintf("- Events: `%d`\n", s.NumEvents))
	b.WriteString(fmt.Sprintf("- Latest Step: `%d`\n", s.LatestStep))
	b.WriteString(fmt.Sprintf("- Loss: `%.4f` -> `%.4f` (delta `%+.4f`)\n", s.FirstLoss, s.FinalLoss, s.LossDelta))
	b.WriteString(fmt.Sprintf("- Latest Learning Rate: `%.2e`\n", s.LatestLearningRate))
	if s.LatestRewardMargin != nil {
		b.WriteString(fmt.Sprintf("- Latest Reward Margin: `%.4f`\n", *s.LatestRewardMargin))
	}
	if !s.StartedAt.IsZero() {
		b.WriteString(fmt.Sprintf("- Started: `%s`\n", s.StartedAt.Format("2006-01-02 15:04:05 MST")))
		b.WriteString(fmt.Sprintf("- Updated: `%s`\n", s.UpdatedAt.Format("2006-01-02 15:04:05 MST")))
	}

	if len(tail) > 0 {
		b.WriteString("\n## Recent Steps\n\n")
		b.WriteString("| Step | Loss | Learning Rate | Reward Margin |\n")
		b.WriteString("|---:|---:|---:|---:|\n")
		for _, e := range tail {
			margin := "-"
			if e.RewardMargin != nil {
				margin = fmt.Sprintf("%.4f", *e.RewardMargin)
			}
			b.WriteString(fmt.Sprintf("| %d | %.4f | %.2e | %s |\n", e.Step, e.Loss, e.LearningRate, margin))
		}
	}
	return b.String()
}

func WriteMarkdown(path string, s Summary, tail []types.RunEvent) error {
	return os.WriteFile(path, []byte(BuildMarkdown(s, tail)), 0o644)
}
