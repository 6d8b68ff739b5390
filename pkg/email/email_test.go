package email

import (
	"context"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

// captureMailer records outgoing mail instead of delivering it.
type captureMailer struct {
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

var codeRegex = regexp.MustCompile(`\b(\d{6})\b`)

func newTestService(t *testing.T) (*Service, *captureMailer) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	mailer := &captureMailer{}
	return NewService(mailer, c, map[string]string{"verify": "Custom subject"}, "testinstance"), mailer
}

func TestServiceEnabled(t *testing.T) {
	svc, _ := newTestService(t)
	assert.True(t, svc.Enabled())

	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
	assert.False(t, NewService(nil, nil, nil, "x").Enabled())
}

func TestVerificationFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendVerification(ctx, 42, "me@example.com"))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "me@example.com", mailer.sent[0].to)
		assert.Equal(t, "Custom subject", mailer.sent[0].subject)
		assert.Contains(t, mailer.sent[0].body, "testinstance")

		code := codeRegex.FindString(mailer.sent[0].body)
		require.NotEmpty(t, code)
		assert.NoError(t, svc.CheckVerification(ctx, 42, code))
	})

	t.Run("WrongCodeRejected", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendVerification(ctx, 42, "me@example.com"))
		code := codeRegex.FindString(mailer.sent[0].body)

		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		err := svc.CheckVerification(ctx, 42, wrong)
		assert.ErrorIs(t, err, models.ErrValidation("", ""))
	})

	t.Run("CodeIsSingleUse", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendVerification(ctx, 42, "me@example.com"))
		code := codeRegex.FindString(mailer.sent[0].body)

		require.NoError(t, svc.CheckVerification(ctx, 42, code))
		assert.Error(t, svc.CheckVerification(ctx, 42, code))
	})

	t.Run("CodeIsPerUser", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendVerification(ctx, 42, "me@example.com"))
		code := codeRegex.FindString(mailer.sent[0].body)

		assert.Error(t, svc.CheckVerification(ctx, 43, code))
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendPasswordReset(ctx, "me@example.com"))
		require.Len(t, mailer.sent, 1)
		// No custom subject configured for resets, so the fallback is used.
		assert.Equal(t, "Reset your password", mailer.sent[0].subject)

		code := codeRegex.FindString(mailer.sent[0].body)
		require.NotEmpty(t, code)
		assert.NoError(t, svc.CheckPasswordReset(ctx, "me@example.com", code))
	})

	t.Run("CodeIsBoundToTheAddress", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendPasswordReset(ctx, "me@example.com"))
		code := codeRegex.FindString(mailer.sent[0].body)

		assert.Error(t, svc.CheckPasswordReset(ctx, "other@example.com", code))
	})

	t.Run("CodeIsSingleUse", func(t *testing.T) {
		svc, mailer := newTestService(t)

		require.NoError(t, svc.SendPasswordReset(ctx, "me@example.com"))
		code := codeRegex.FindString(mailer.sent[0].body)

		require.NoError(t, svc.CheckPasswordReset(ctx, "me@example.com", code))
		assert.Error(t, svc.CheckPasswordReset(ctx, "me@example.com", code))
	})
}
