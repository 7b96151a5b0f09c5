package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scoredesk/internal/remote"
	"scoredesk/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and correct extracted answers",
	}
	cmd.AddCommand(newReviewShowCommand(ctx))
	cmd.AddCommand(newReviewSaveCommand(ctx))
	return cmd
}

func (c *commandContext) reviewAPI() *review.API {
	return review.NewAPI(c.remoteClient(), c.log())
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show the extracted identifier and answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission id")
			if err != nil {
				return err
			}
			rv, err := ctx.reviewAPI().Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rv)
			}
			printReview(cmd.OutOrStdout(), id, rv)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printReview(out io.Writer, id int64, rv review.Review) {
	identifier := rv.IdentifierText()
	if identifier == "" {
		identifier = "(none)"
	}
	fprintf(out, "Submission %d\n  Identifier: %s\n", id, identifier)
	if len(rv.Answers) == 0 {
		fprintf(out, "  No answers extracted\n")
		return
	}
	rows := make([][]string, 0, len(rv.Answers))
	for _, a := range rv.Answers {
		rows = append(rows, []string{formatOptionalID(a.QuestionID), formatOptionalID(a.QuestionNo), a.Answer})
	}
	fprintf(out, "%s\n", renderTable([]string{"Question", "No", "Answer"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft}))
}

func newReviewSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		identifier string
		answers    []string
		file       string
		note       string
	)
	cmd := &cobra.Command{
		Use:   "save <submission-id>",
		Short: "Commit corrected answers",
		Long: "Fetches the current review, applies the given corrections and commits them.\n" +
			"Answers are addressed as QUESTION=VALUE, where QUESTION is a question id\n" +
			"or no:N for a question number.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission id")
			if err != nil {
				return err
			}
			api := ctx.reviewAPI()
			confirmed, err := api.Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			draft := review.NewDraft(id, confirmed)
			if cmd.Flags().Changed("identifier") {
				if err := draft.SetIdentifier(identifier); err != nil {
					return err
				}
			}
			if file != "" {
				if err := applyAnswerFile(draft, file); err != nil {
					return err
				}
			}
			for _, spec := range answers {
				if err := applyAnswerFlag(draft, spec); err != nil {
					return err
				}
			}
			draft.SetNote(note)

			out := cmd.OutOrStdout()
			if !draft.Dirty() && strings.TrimSpace(note) == "" {
				fprintf(out, "No changes to save for submission %d\n", id)
				return nil
			}
			result, err := draft.Commit(cmd.Context(), api)
			if err != nil {
				if errors.Is(err, review.ErrInvalidRequest) {
					return err
				}
				return fmt.Errorf("save review %d: %s", id, remote.OperatorMessage(err))
			}
			status := result.Status
			if status == "" {
				status = "saved"
			}
			fprintf(out, "Submission %d review %s\n", id, status)
			if result.Detail != "" {
				fprintf(out, "  %s\n", result.Detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "Student identifier (empty clears it)")
	cmd.Flags().StringArrayVar(&answers, "answer", nil, "Corrected answer as QUESTION=VALUE (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "JSON file with a list of {question_id|question_no, answer}")
	cmd.Flags().StringVar(&note, "note", "", "Note recorded with the correction")
	return cmd
}

// applyAnswerFlag applies one QUESTION=VALUE correction. A bare number is
// tried as a question id first and then as a question number.
func applyAnswerFlag(draft *review.Draft, spec string) error {
	target, value, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("invalid answer %q: want QUESTION=VALUE", spec)
	}
	target = strings.TrimSpace(target)
	if rest, found := strings.CutPrefix(target, "no:"); found {
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid question number %q", rest)
		}
		return draft.SetAnswer(review.Key{QuestionNo: n}, value)
	}
	n, err := strconv.ParseInt(target, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid question %q", target)
	}
	err = draft.SetAnswer(review.Key{QuestionID: n}, value)
	if errors.Is(err, review.ErrUnknownAnswer) {
		return draft.SetAnswer(review.Key{QuestionNo: n}, value)
	}
	return err
}

func applyAnswerFile(draft *review.Draft, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	var inputs []review.AnswerInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("parse answers %s: %w", path, err)
	}
	for i, in := range inputs {
		var key review.Key
		if in.QuestionID != nil {
			key.QuestionID = *in.QuestionID
		}
		if in.QuestionNo != nil {
			key.QuestionNo = *in.QuestionNo
		}
		if key == (review.Key{}) {
			return fmt.Errorf("answers[%d]: question_id or question_no is required", i)
		}
		if err := draft.SetAnswer(key, in.Answer); err != nil {
			return fmt.Errorf("answers[%d]: %w", i, err)
		}
	}
	return nil
}
