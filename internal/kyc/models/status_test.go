package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycflow/pkg/domain-errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    Status
		trigger Trigger
		to      Status
		allowed bool
	}{
		{StatusDraft, TriggerSubmit, StatusSubmitted, true},
		{StatusActionRequired, TriggerSubmit, StatusSubmitted, true},
		{StatusUnderReview, TriggerSubmit, StatusSubmitted, false},
		{StatusApproved, TriggerSubmit, StatusSubmitted, false},
		{StatusSubmitted, TriggerScreeningResult, StatusApproved, true},
		{StatusSubmitted, TriggerScreeningResult, StatusUnderReview, true},
		{StatusSubmitted, TriggerScreeningResult, StatusRejected, false},
		{StatusSubmitted, TriggerScreeningFailure, StatusUnderReview, true},
		{StatusDraft, TriggerScreeningResult, StatusApproved, false},
		{StatusUnderReview, TriggerApprove, StatusApproved, true},
		{StatusActionRequired, TriggerReject, StatusRejected, true},
		{StatusUnderReview, TriggerRequestInfo, StatusActionRequired, true},
		{StatusActionRequired, TriggerRequestInfo, StatusActionRequired, true},
		{StatusSubmitted, TriggerApprove, StatusApproved, false},
		{StatusDraft, TriggerApprove, StatusApproved, false},
		{StatusRejected, TriggerApprove, StatusApproved, false},
		{StatusDraft, TriggerInboundEvent, StatusActionRequired, true},
		{StatusSubmitted, TriggerInboundEvent, StatusRejected, true},
		{StatusUnderReview, TriggerInboundEvent, StatusApproved, true},
		{StatusApproved, TriggerInboundEvent, StatusRejected, false},
		{StatusRejected, TriggerInboundEvent, StatusUnderReview, false},
		{StatusUnderReview, TriggerInboundEvent, StatusDraft, false},
	}

	for _, tt := range tests {
		name := string(tt.from) + " " + string(tt.trigger) + " " + string(tt.to)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.trigger, tt.to))
		})
	}
}

func TestTerminalStatusesAllowNothing(t *testing.T) {
	triggers := []Trigger{TriggerSubmit, TriggerScreeningResult, TriggerScreeningFailure,
		TriggerApprove, TriggerReject, TriggerRequestInfo, TriggerInboundEvent}
	for _, from := range []Status{StatusApproved, StatusRejected} {
		for _, trigger := range triggers {
			for _, to := range AllStatuses {
				assert.False(t, CanTransition(from, trigger, to), "%s --%s--> %s", from, trigger, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" under_review ")
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, s)

	_, err = ParseStatus("PENDING")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAcceptsDocuments(t *testing.T) {
	assert.True(t, StatusDraft.AcceptsDocuments())
	assert.True(t, StatusUnderReview.AcceptsDocuments())
	assert.True(t, StatusActionRequired.AcceptsDocuments())
	assert.False(t, StatusSubmitted.AcceptsDocuments())
	assert.False(t, StatusApproved.AcceptsDocuments())
	assert.False(t, StatusRejected.AcceptsDocuments())
}

func TestParseDocumentType(t *testing.T) {
	dt, err := ParseDocumentType("ktp_front")
	require.NoError(t, err)
	assert.Equal(t, DocumentKTPFront, dt)

	_, err = ParseDocumentType("DRIVING_LICENSE")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
