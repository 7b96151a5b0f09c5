package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scoredesk/internal/cache"
	"scoredesk/internal/export"
	"scoredesk/internal/remote"
	"scoredesk/internal/results"
	"scoredesk/internal/scoreentry"
	"scoredesk/internal/scoring"
)

func newScoresCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Read and enter session scores",
	}
	cmd.AddCommand(newScoresSessionCommand(ctx))
	cmd.AddCommand(newScoresHomeworkCommand(ctx))
	cmd.AddCommand(newScoresExamItemCommand(ctx))
	cmd.AddCommand(newScoresHomeworkListCommand(ctx))
	cmd.AddCommand(newScoresHomeworkPatchCommand(ctx))
	return cmd
}

func (c *commandContext) resultsAPI() *results.API {
	return results.NewAPI(c.remoteClient(), c.log())
}

func (c *commandContext) editor() *scoreentry.Editor {
	var recorder scoreentry.SheetRecorder
	if store := c.cacheStore(); store != nil {
		recorder = store
	}
	return scoreentry.NewEditor(c.resultsAPI(), recorder, c.log())
}

// sessionSheet fetches a session sheet and stores it in the cache. With
// offline set it reads the cached copy instead.
func (c *commandContext) sessionSheet(cmd *cobra.Command, sessionID int64, offline bool) (scoring.SessionScores, time.Time, error) {
	if offline {
		store, err := c.requireStore()
		if err != nil {
			return scoring.SessionScores{}, time.Time{}, err
		}
		sheet, fetchedAt, err := store.GetSessionScores(cmd.Context(), sessionID)
		if errors.Is(err, cache.ErrNotFound) {
			return scoring.SessionScores{}, time.Time{}, fmt.Errorf("session %d has not been fetched yet", sessionID)
		}
		return sheet, fetchedAt, err
	}
	sheet, err := c.resultsAPI().FetchSessionScores(cmd.Context(), sessionID)
	if err != nil {
		return scoring.SessionScores{}, time.Time{}, err
	}
	if store := c.cacheStore(); store != nil {
		if err := store.PutSessionScores(cmd.Context(), sessionID, sheet); err != nil {
			c.log().Debug("cache session scores failed", "error", err)
		}
	}
	return sheet, time.Time{}, nil
}

type sessionRowView struct {
	scoring.Row
	Derived scoring.Derived `json:"derived"`
}

func newScoresSessionCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON     bool
		offline    bool
		exportPath string
	)
	cmd := &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show a session's score sheet with pass and clinic results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			sheet, fetchedAt, err := ctx.sessionSheet(cmd, sessionID, offline)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if exportPath != "" {
				if err := exportSheet(exportPath, sessionID, sheet); err != nil {
					return err
				}
				fprintf(out, "Exported session %d to %s\n", sessionID, exportPath)
				return nil
			}

			if asJSON {
				views := make([]sessionRowView, 0, len(sheet.Rows))
				for _, row := range sheet.Rows {
					views = append(views, sessionRowView{Row: row, Derived: scoring.Derive(row)})
				}
				return writeJSON(cmd, struct {
					Meta    scoring.SessionMeta `json:"meta"`
					Rows    []sessionRowView    `json:"rows"`
					Summary scoring.Summary     `json:"summary"`
				}{sheet.Meta, views, scoring.Summarize(sheet.Rows)})
			}

			if !fetchedAt.IsZero() {
				fprintf(out, "Cached copy from %s\n", fetchedAt.Local().Format(time.DateTime))
			}
			printSheet(out, sheet)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Read the last cached sheet instead of the server")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the sheet to an .xlsx workbook")
	return cmd
}

func exportSheet(path string, sessionID int64, sheet scoring.SessionScores) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return fmt.Errorf("export path %q must end in .xlsx", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := export.WriteSessionScores(file, sessionID, sheet); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}

func printSheet(out io.Writer, sheet scoring.SessionScores) {
	if len(sheet.Rows) == 0 {
		fprintf(out, "No students enrolled\n")
		return
	}
	headers := []string{"Enrollment", "Student"}
	aligns := []columnAlignment{alignRight, alignLeft}
	for _, exam := range sheet.Meta.Exams {
		headers = append(headers, exam.Title)
		aligns = append(aligns, alignRight)
	}
	for _, hw := range sheet.Meta.Homeworks {
		headers = append(headers, hw.Title)
		aligns = append(aligns, alignRight)
	}
	headers = append(headers, "Result", "Clinic", "Reasons")

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		derived := scoring.Derive(row)
		line := []string{strconv.FormatInt(row.EnrollmentID, 10), row.StudentName}
		for _, ref := range sheet.Meta.Exams {
			entry, ok := row.Exam(ref.ExamID)
			line = append(line, sheetCell(entry.Block, ok))
		}
		for _, ref := range sheet.Meta.Homeworks {
			entry, ok := row.Homework(ref.HomeworkID)
			line = append(line, sheetCell(entry.Block, ok))
		}
		clinic := yesNo(derived.ClinicTarget)
		if derived.ServerClinic.Any() && !derived.ClinicTarget {
			clinic = "flagged"
		}
		line = append(line, formatVerdict(derived.OverallPassed), clinic, strings.Join(derived.Reasons, ", "))
		rows = append(rows, line)
	}
	fprintf(out, "%s\n", renderTable(headers, rows, aligns))

	s := scoring.Summarize(sheet.Rows)
	fprintf(out, "%d students: %d passed, %d failed, %d pending, %d clinic\n",
		s.Participants, s.Passed, s.Failed, s.Pending, s.ClinicTarget)
	if s.ExamAverage != nil {
		fprintf(out, "Exam: avg %s, min %s, max %s over %d scored\n",
			formatScore(s.ExamAverage), formatScore(s.ExamMin), formatScore(s.ExamMax), s.ExamScored)
	}
}

func sheetCell(block scoring.Block, present bool) string {
	if !present {
		return "-"
	}
	text := scoreentry.FormatBlock(block)
	if text == "" {
		text = "-"
	}
	if block.IsLocked {
		text += " (locked)"
	}
	return text
}

func reportEntryError(out io.Writer, outcome scoreentry.Outcome, err error) error {
	if errors.Is(err, scoreentry.ErrLocked) && outcome.Resynced && outcome.Row != nil {
		fprintf(out, "Row %d reloaded from the server\n", outcome.Row.EnrollmentID)
	}
	if errors.Is(err, scoreentry.ErrLocked) || errors.Is(err, scoreentry.ErrInvalidInput) {
		return err
	}
	return errors.New(remote.OperatorMessage(err))
}

func newScoresHomeworkCommand(ctx *commandContext) *cobra.Command {
	var homeworkID int64
	cmd := &cobra.Command{
		Use:   "homework <session-id> <enrollment-id> <input>",
		Short: "Enter a homework score",
		Long: "Enter a homework score using the quick-entry forms:\n" +
			"  N      score N\n" +
			"  N%     N percent of the max score\n" +
			"  A/B    A out of B, scaled to the max score\n" +
			"  /      mark not submitted\n" +
			"  \"\"     clear the status",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			enrollmentID, err := parseID(args[1], "enrollment id")
			if err != nil {
				return err
			}
			sheet, _, err := ctx.sessionSheet(cmd, sessionID, false)
			if err != nil {
				return err
			}
			row, ok := sheet.Row(enrollmentID)
			if !ok {
				return fmt.Errorf("enrollment %d is not in session %d", enrollmentID, sessionID)
			}
			entry, err := pickHomework(row, homeworkID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cell := scoreentry.HomeworkCell(sessionID, row, entry)
			outcome, err := ctx.editor().Submit(cmd.Context(), cell, args[2])
			if err != nil {
				return reportEntryError(out, outcome, err)
			}
			shown := cell.Text
			if shown == "" {
				shown = "(empty)"
			}
			fprintf(out, "%s for enrollment %d: %s (%s)\n", entry.Title, enrollmentID, shown, outcome.Action)
			if outcome.Record != nil {
				fprintf(out, "  passed: %s  clinic: %s\n", yesNo(outcome.Record.Passed), yesNo(outcome.Record.ClinicRequired))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&homeworkID, "homework", 0, "Homework id (defaults to the session's only homework)")
	return cmd
}

func pickHomework(row scoring.Row, homeworkID int64) (scoring.HomeworkEntry, error) {
	if homeworkID > 0 {
		entry, ok := row.Homework(homeworkID)
		if !ok {
			return scoring.HomeworkEntry{}, fmt.Errorf("homework %d is not configured for this session", homeworkID)
		}
		return entry, nil
	}
	switch len(row.Homeworks) {
	case 0:
		return scoring.HomeworkEntry{}, errors.New("session has no homework configured")
	case 1:
		return row.Homeworks[0], nil
	default:
		return scoring.HomeworkEntry{}, fmt.Errorf("session has %d homeworks; pass --homework", len(row.Homeworks))
	}
}

func newScoresExamItemCommand(ctx *commandContext) *cobra.Command {
	var sessionID int64
	cmd := &cobra.Command{
		Use:   "exam-item <exam-id> <enrollment-id> <question-id> <score>",
		Short: "Enter the score of one exam question",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:3], "id")
			if err != nil {
				return err
			}
			examID, enrollmentID, questionID := ids[0], ids[1], ids[2]

			var block scoring.Block
			if sessionID > 0 {
				sheet, _, err := ctx.sessionSheet(cmd, sessionID, false)
				if err != nil {
					return err
				}
				row, ok := sheet.Row(enrollmentID)
				if !ok {
					return fmt.Errorf("enrollment %d is not in session %d", enrollmentID, sessionID)
				}
				exam, ok := row.Exam(examID)
				if !ok {
					return fmt.Errorf("exam %d is not configured for session %d", examID, sessionID)
				}
				block.IsLocked = exam.Block.IsLocked
				block.LockReason = exam.Block.LockReason
			}

			out := cmd.OutOrStdout()
			cell := scoreentry.ExamItemCell(sessionID, enrollmentID, examID, questionID, block)
			outcome, err := ctx.editor().Submit(cmd.Context(), cell, args[3])
			if err != nil {
				return reportEntryError(out, outcome, err)
			}
			fprintf(out, "Question %d for enrollment %d: %s", questionID, enrollmentID, cell.Text)
			if outcome.Item != nil && outcome.Item.MaxScore != nil {
				fprintf(out, " / %s", formatScore(outcome.Item.MaxScore))
			}
			fprintf(out, "\n")
			return nil
		},
	}
	cmd.Flags().Int64Var(&sessionID, "session", 0, "Session id, to check the exam lock before writing")
	return cmd
}

func newScoresHomeworkListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		filter results.HomeworkScoreFilter
		locked string
	)
	cmd := &cobra.Command{
		Use:   "homework-list",
		Short: "List stored homework score records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if locked != "" {
				value, err := strconv.ParseBool(locked)
				if err != nil {
					return fmt.Errorf("invalid --locked value %q", locked)
				}
				filter.Locked = &value
			}
			records, err := ctx.resultsAPI().ListHomeworkScores(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fprintf(out, "No homework scores found\n")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				lock := yesNo(r.IsLocked)
				if reason := r.Block().LockReasonText(); reason != "" {
					lock += " (" + reason + ")"
				}
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					strconv.FormatInt(r.EnrollmentID, 10),
					scoreentry.FormatBlock(r.Block()),
					formatScore(r.MaxScore),
					yesNo(r.TeacherApproved),
					yesNo(r.Passed),
					lock,
				})
			}
			fprintf(out, "%s\n", renderTable(
				[]string{"ID", "Enrollment", "Score", "Max", "Approved", "Passed", "Locked"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().Int64Var(&filter.SessionID, "session", 0, "Only this session")
	cmd.Flags().Int64Var(&filter.LectureID, "lecture", 0, "Only this lecture")
	cmd.Flags().Int64Var(&filter.EnrollmentID, "enrollment", 0, "Only this enrollment")
	cmd.Flags().StringVar(&locked, "locked", "", "Only locked (true) or unlocked (false) records")
	return cmd
}

func newScoresHomeworkPatchCommand(ctx *commandContext) *cobra.Command {
	var (
		score    float64
		maxScore float64
		approved bool
	)
	cmd := &cobra.Command{
		Use:   "homework-patch <score-id>",
		Short: "Edit a stored homework score record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "homework score id")
			if err != nil {
				return err
			}
			var patch results.HomeworkPatch
			if cmd.Flags().Changed("score") {
				patch.Score = &score
			}
			if cmd.Flags().Changed("max-score") {
				patch.MaxScore = &maxScore
			}
			if cmd.Flags().Changed("approved") {
				patch.TeacherApproved = &approved
			}
			if patch.Empty() {
				return errors.New("nothing to change; pass --score, --max-score or --approved")
			}
			record, err := ctx.resultsAPI().PatchHomeworkScore(cmd.Context(), id, patch)
			if err != nil {
				return errors.New(remote.OperatorMessage(err))
			}
			fprintf(cmd.OutOrStdout(), "Homework score %d: %s / %s, passed %s\n",
				record.ID, formatScore(record.Score), formatScore(record.MaxScore), yesNo(record.Passed))
			return nil
		},
	}
	cmd.Flags().Float64Var(&score, "score", 0, "New score")
	cmd.Flags().Float64Var(&maxScore, "max-score", 0, "New max score")
	cmd.Flags().BoolVar(&approved, "approved", false, "Teacher approval")
	return cmd
}
