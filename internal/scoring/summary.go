package scoring

import "math"

// Summary aggregates a session's rows for the score overview.
type Summary struct {
	Participants int `json:"participants"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Pending      int `json:"pending"`
	ClinicTarget int `json:"clinic_target"`
	// Exam statistics cover the first configured exam over rows that have a score.
	ExamScored  int      `json:"exam_scored"`
	ExamAverage *float64 `json:"exam_average,omitempty"`
	ExamMin     *float64 `json:"exam_min,omitempty"`
	ExamMax     *float64 `json:"exam_max,omitempty"`
}

func Summarize(rows []Row) Summary {
	summary := Summary{Participants: len(rows)}
	var total float64
	minScore, maxScore := math.Inf(1), math.Inf(-1)

	for _, row := range rows {
		switch overall := OverallPassed(row); {
		case overall == nil:
			summary.Pending++
		case *overall:
			summary.Passed++
		default:
			summary.Failed++
		}
		if IsClinicTarget(row) {
			summary.ClinicTarget++
		}
		if len(row.Exams) == 0 || row.Exams[0].Block.Score == nil {
			continue
		}
		score := *row.Exams[0].Block.Score
		if !isFinite(score) {
			continue
		}
		summary.ExamScored++
		total += score
		minScore = math.Min(minScore, score)
		maxScore = math.Max(maxScore, score)
	}

	if summary.ExamScored > 0 {
		avg := math.Round(total/float64(summary.ExamScored)*10) / 10
		summary.ExamAverage = &avg
		summary.ExamMin = &minScore
		summary.ExamMax = &maxScore
	}
	return summary
}
