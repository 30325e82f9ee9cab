package triage

import (
	"fmt"

	"github.com/menoncello/triage/internal/models"
)

// outcome accuracy contributions: an accepted suggestion was right, a
// modified one half right, a rejected one wrong.
const (
	acceptedAccuracy = 1.0
	modifiedAccuracy = 0.5
)

// TrackTriageEffectiveness tallies how suggestions fared against
// recorded outcomes (matched by issue id) and emits recommendations when
// the numbers point at a problem.
func TrackTriageEffectiveness(prioritizations []models.IssuePrioritization, outcomes []models.TriageOutcome) models.TriageEffectivenessReport {
	byIssue := make(map[string]models.TriageOutcome, len(outcomes))
	for _, o := range outcomes {
		byIssue[o.IssueID] = o
	}

	var report models.TriageEffectivenessReport
	accuracySum := 0.0
	lowConfidence := 0

	for _, p := range prioritizations {
		o, ok := byIssue[p.IssueID]
		if !ok {
			continue
		}
		report.Total++
		switch o.Status {
		case models.OutcomeAccepted:
			report.Accepted++
			accuracySum += acceptedAccuracy
		case models.OutcomeModified:
			report.Modified++
			accuracySum += modifiedAccuracy
		case models.OutcomeRejected:
			report.Rejected++
		}
		if p.Suggestion.Confidence < 0.5 {
			lowConfidence++
		}
	}

	if report.Total == 0 {
		report.Recommendations = append(report.Recommendations,
			"no recorded outcomes yet; record triage outcomes to measure effectiveness")
		return report
	}
	report.Accuracy = accuracySum / float64(report.Total)

	rejectionRate := float64(report.Rejected) / float64(report.Total)
	lowConfidenceShare := float64(lowConfidence) / float64(report.Total)

	if report.Accuracy < 0.7 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("suggestion accuracy is %.0f%%; review scoring weights and rule adjustments", report.Accuracy*100))
	}
	if rejectionRate > 0.3 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%.0f%% of suggestions were rejected; the team may disagree with action thresholds", rejectionRate*100))
	}
	if lowConfidenceShare > 0.2 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%.0f%% of suggestions had low confidence; consider training the classifier on recent outcomes", lowConfidenceShare*100))
	}
	return report
}
