package main

import (
	"github.com/spf13/cobra"

	"scoredesk/internal/presentation"
	"scoredesk/internal/submission"
	"scoredesk/internal/video"
)

// newLegendCommand prints the label and tone of every status, or of the
// given raw values.
func newLegendCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "legend [value...]",
		Short:       "Show how statuses are labelled",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var rows [][]string
			add := func(kind, value string, p presentation.Presentation) {
				rows = append(rows, []string{kind, value, badge(p, colorize), string(p.Tone)})
			}

			if len(args) > 0 {
				for _, raw := range args {
					if status, ok := submission.ParseStatus(raw); ok {
						add("submission", string(status), status.Presentation())
					} else if status, ok := video.ParseStatus(raw); ok {
						add("video", string(status), status.Presentation())
					} else {
						add("unknown", raw, presentation.Fallback(raw))
					}
				}
			} else {
				for _, status := range submission.AllStatuses() {
					add("submission", string(status), status.Presentation())
				}
				for _, status := range video.AllStatuses() {
					add("video", string(status), status.Presentation())
				}
			}
			fprintf(out, "%s\n", renderTable([]string{"Kind", "Value", "Label", "Tone"}, rows, nil))
			return nil
		},
	}
}
