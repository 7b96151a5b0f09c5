package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newEnrollmentsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "enrollments <session-id>",
		Short: "List the students enrolled in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			list, err := ctx.resultsAPI().ListEnrollments(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fprintf(out, "No enrollments for session %d\n", sessionID)
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, e := range list {
				enrollment := e.EnrollmentID
				if enrollment == 0 {
					enrollment = e.ID
				}
				rows = append(rows, []string{strconv.FormatInt(enrollment, 10), e.StudentName})
			}
			fprintf(out, "%s\n", renderTable([]string{"Enrollment", "Student"}, rows,
				[]columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
