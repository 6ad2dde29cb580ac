package mail

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/supreset/identity/internal/config"
)

func smtpConfig() *config.MailConfig {
	return &config.MailConfig{
		Host:     "smtp.example.com",
		Port:     465,
		Secure:   true,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@example.com",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.MailConfig
		env     string
		want    any
		wantErr error
	}{
		{name: "configured", cfg: smtpConfig(), env: "production", want: &SMTPSender{}},
		{name: "unconfigured development", cfg: &config.MailConfig{}, env: "development", want: &LogSender{}},
		{name: "unconfigured production", cfg: &config.MailConfig{}, env: "production", wantErr: ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := New(tt.cfg, tt.env, zap.NewNop())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sender)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestSMTPSenderMessage(t *testing.T) {
	s := NewSMTPSender(smtpConfig(), zap.NewNop())

	msg, err := s.message("alice@example.com", "123456", 5*time.Minute)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "alice@example.com")
	assert.Contains(t, raw, "noreply@example.com")
	assert.Contains(t, raw, codeSubject)
	assert.Contains(t, raw, "123456")
	assert.Contains(t, raw, "5 minute(s)")
}

func TestSMTPSenderRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(smtpConfig(), zap.NewNop())

	_, err := s.message("not an address", "123456", time.Minute)
	assert.Error(t, err)
}

func TestCodeBody(t *testing.T) {
	assert.Contains(t, codeBody("654321", 20*time.Second), "1 minute(s)")
	assert.Contains(t, codeBody("654321", 10*time.Minute), "10 minute(s)")
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.SendCode(context.Background(), "bob@example.com", "111222", time.Minute))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bob@example.com", fields["email"])
	assert.Equal(t, "111222", fields["code"])
}
