package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/testutil"
)

func TestResubmissionAfterInfoRequest(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	testutil.Given(t, "a case a reviewer sent back for more information", func(t *testing.T) {
		app, err := models.NewApplication(id.NewApplicationID(), id.NewCustomerID(), now)
		require.NoError(t, err)
		require.NoError(t, app.CanSubmit())
		app.ApplySubmission(now)
		require.NoError(t, app.ApplyScreeningFailure("Agent Analysis Failed: timeout", now))
		require.NoError(t, app.CanRequestInfo("rina", "upload a clearer KTP"))
		app.ApplyInfoRequest("rina", "upload a clearer KTP", now)

		testutil.When(t, "the customer adds a document", func(t *testing.T) {
			assert.NoError(t, app.CanAttachDocument())
		})

		testutil.Then(t, "the case can be submitted again", func(t *testing.T) {
			require.NoError(t, app.CanSubmit())
			app.ApplySubmission(now.Add(time.Hour))
			assert.Equal(t, models.StatusSubmitted, app.Status)
			assert.Contains(t, app.AdminComments, "Additional Info Requested: upload a clearer KTP")
		})

		testutil.Then(t, "screening is not re-entered while in flight", func(t *testing.T) {
			assert.Error(t, app.CanAttachDocument())
			assert.Error(t, app.CanSubmit())
		})
	})
}
