package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/models"
)

// JobStatusTransitions lets the owning employer move a job freely between its
// operational states.
var JobStatusTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusActive: {models.JobStatusActive, models.JobStatusFilled, models.JobStatusClosed},
	models.JobStatusFilled: {models.JobStatusActive, models.JobStatusFilled, models.JobStatusClosed},
	models.JobStatusClosed: {models.JobStatusActive, models.JobStatusFilled, models.JobStatusClosed},
}

var ReviewStatusTransitions = map[models.ReviewStatus][]models.ReviewStatus{
	models.ReviewStatusPending:  {models.ReviewStatusPending, models.ReviewStatusApproved, models.ReviewStatusRejected},
	models.ReviewStatusApproved: {models.ReviewStatusPending},
	models.ReviewStatusRejected: {models.ReviewStatusPending},
}

var ApplicationStatusTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusApplied:   {models.ApplicationStatusInterview, models.ApplicationStatusHired, models.ApplicationStatusRejected},
	models.ApplicationStatusInterview: {models.ApplicationStatusHired, models.ApplicationStatusRejected},
}

var OfferStatusTransitions = map[models.OfferStatus][]models.OfferStatus{
	models.OfferStatusPending: {models.OfferStatusAccepted, models.OfferStatusRejected},
}

var CallStatusTransitions = map[models.CallStatus][]models.CallStatus{
	models.CallStatusRequested: {models.CallStatusAccepted, models.CallStatusRejected, models.CallStatusEnded},
	models.CallStatusAccepted:  {models.CallStatusEnded},
}

// CanTransition reports whether table permits from -> to.
func CanTransition[S ~string](table map[S][]S, from, to S) bool {
	return slices.Contains(table[from], to)
}

func checkTransition[S ~string](entity string, table map[S][]S, from, to S) error {
	if CanTransition(table, from, to) {
		return nil
	}
	return apperr.Validation("invalid_transition", fmt.Sprintf("%s cannot move from %s to %s", entity, from, to))
}

func parseChoice[S ~string](field, value string, allowed []S) (S, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, s := range allowed {
		if string(s) == normalized {
			return s, nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return "", apperr.InvalidChoice(field, value, names)
}

func ParseJobStatus(value string) (models.JobStatus, error) {
	return parseChoice("status", value, []models.JobStatus{
		models.JobStatusActive, models.JobStatusFilled, models.JobStatusClosed,
	})
}

func ParseReviewStatus(value string) (models.ReviewStatus, error) {
	return parseChoice("review_status", value, []models.ReviewStatus{
		models.ReviewStatusPending, models.ReviewStatusApproved, models.ReviewStatusRejected,
	})
}

func ParseApplicationStatus(value string) (models.ApplicationStatus, error) {
	return parseChoice("status", value, []models.ApplicationStatus{
		models.ApplicationStatusApplied, models.ApplicationStatusInterview,
		models.ApplicationStatusHired, models.ApplicationStatusRejected,
	})
}

func ParseOfferStatus(value string) (models.OfferStatus, error) {
	return parseChoice("status", value, []models.OfferStatus{
		models.OfferStatusPending, models.OfferStatusAccepted, models.OfferStatusRejected,
	})
}

// ParseOfferDecision accepts accept/reject as well as the resulting status names.
func ParseOfferDecision(value string) (models.OfferStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "accept", "accepted":
		return models.OfferStatusAccepted, nil
	case "reject", "rejected", "decline", "declined":
		return models.OfferStatusRejected, nil
	}
	return "", apperr.InvalidChoice("decision", value, []string{"accept", "reject"})
}

// ParseCallAction maps accept/reject/end to the resulting call status.
func ParseCallAction(value string) (models.CallStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "accept", "accepted":
		return models.CallStatusAccepted, nil
	case "reject", "rejected":
		return models.CallStatusRejected, nil
	case "end", "ended":
		return models.CallStatusEnded, nil
	}
	return "", apperr.InvalidChoice("action", value, []string{"accept", "reject", "end"})
}

// ParseReportStatus, ParseSubmissionStatus and ParseSupportRequestStatus cover
// the free-moving statuses of the regulator, agency and support flows.
func ParseReportStatus(value string) (models.ReportStatus, error) {
	return parseChoice("status", value, models.ReportStatuses)
}

func ParseSubmissionStatus(value string) (models.SubmissionStatus, error) {
	return parseChoice("status", value, models.SubmissionStatuses)
}

func ParseSupportRequestStatus(value string) (models.SupportRequestStatus, error) {
	return parseChoice("status", value, models.SupportRequestStatuses)
}
