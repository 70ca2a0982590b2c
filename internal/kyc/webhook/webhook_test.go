package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycflow/pkg/domain-errors"
)

func TestVerifier(t *testing.T) {
	body := []byte(`{"providerApplicantId":"agent-session-1","status":"GREEN"}`)
	v := NewVerifier("shared-secret")

	mac := hmac.New(sha256.New, []byte("shared-secret"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	t.Run("matching signature", func(t *testing.T) {
		assert.Equal(t, expected, v.Sign(body))
		assert.True(t, v.Verify(body, expected))
		assert.True(t, v.Verify(body, "sha256="+expected))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier("other-secret")
		assert.False(t, v.Verify(body, other.Sign(body)))
	})

	t.Run("tampered body", func(t *testing.T) {
		assert.False(t, v.Verify(append(body, ' '), expected))
	})

	t.Run("malformed signatures", func(t *testing.T) {
		assert.False(t, v.Verify(body, ""))
		assert.False(t, v.Verify(body, "zz"))
		assert.False(t, v.Verify(body, expected[:10]))
	})

	t.Run("empty secret never verifies", func(t *testing.T) {
		empty := NewVerifier("")
		assert.False(t, empty.Verify(body, empty.Sign(body)))
	})
}

func TestParseEvent(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"providerApplicantId":" agent-session-1 ","status":"green","riskScore":12,"riskLabels":["A","B"]}`))
		require.NoError(t, err)
		assert.Equal(t, "agent-session-1", ev.ProviderApplicantID)
		assert.Equal(t, "GREEN", ev.Status)
		assert.Equal(t, 12, ev.RiskScore)
		assert.Equal(t, []string{"A", "B"}, ev.RiskLabels)
	})

	t.Run("missing score defaults to zero", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"providerApplicantId":"x","status":"RESUBMIT"}`))
		require.NoError(t, err)
		assert.Equal(t, 0, ev.RiskScore)
		assert.Nil(t, ev.RiskLabels)
	})

	t.Run("missing correlation key", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"status":"RED"}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("score out of range", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"providerApplicantId":"x","riskScore":101}`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseEvent([]byte(`status=RED`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
