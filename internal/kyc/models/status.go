package models

import (
	dErrors "kycgate/pkg/domain-errors"
)

// Status is a user's position in the KYC lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusIncomplete  Status = "incomplete"
)

// Trigger names the action that drives a transition.
type Trigger string

const (
	TriggerSubmission Trigger = "submission"
	TriggerReview     Trigger = "review"
)

// transitions is the complete set of allowed moves. Anything absent is rejected.
var transitions = map[Status]map[Trigger][]Status{
	StatusPending: {
		TriggerSubmission: {StatusUnderReview},
	},
	StatusUnderReview: {
		TriggerSubmission: {StatusUnderReview},
		TriggerReview:     {StatusApproved, StatusRejected, StatusIncomplete},
	},
	StatusIncomplete: {
		TriggerSubmission: {StatusUnderReview},
		TriggerReview:     {StatusApproved, StatusRejected},
	},
	StatusRejected: {
		TriggerSubmission: {StatusUnderReview},
	},
	StatusApproved: {
		TriggerSubmission: {StatusUnderReview},
		TriggerReview:     {StatusRejected, StatusIncomplete},
	},
}

// PendingReviewStatuses are the statuses an administrator still has to act on.
var PendingReviewStatuses = []Status{StatusUnderReview, StatusIncomplete}

// ParseStatus converts s to a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown kyc status: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsReviewOutcome reports whether s can only be reached through review.
func (s Status) IsReviewOutcome() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusIncomplete
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether trigger may move a profile from one status to another.
func CanTransition(from, to Status, trigger Trigger) bool {
	for _, allowed := range transitions[from][trigger] {
		if allowed == to {
			return true
		}
	}
	return false
}
