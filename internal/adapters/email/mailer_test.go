package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewMailer(t *testing.T) {
	tests := []struct {
		name    string
		config  MailerConfig
		want    any
		wantErr bool
	}{
		{name: "noop", config: MailerConfig{Provider: "noop"}, want: &noopMailer{}},
		{name: "empty provider", config: MailerConfig{}, want: &noopMailer{}},
		{name: "unknown provider", config: MailerConfig{Provider: "carrier-pigeon"}, want: &noopMailer{}},
		{name: "ses", config: MailerConfig{Provider: "ses", SES: SESConfig{Region: "eu-west-1"}}, want: &sesMailer{}},
		{name: "ses without region", config: MailerConfig{Provider: "ses"}, wantErr: true},
		{name: "mailersend", config: MailerConfig{Provider: "mailersend", MailerSend: MailerSendConfig{APIKey: "key"}}, want: &mailerSendMailer{}},
		{name: "mailersend without key", config: MailerConfig{Provider: "mailersend"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMailer(tt.config, quietLogger())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := &sesMailer{client: client, fromAddress: "events@example.com", fromName: "Events", logger: quietLogger()}

	require.NoError(t, m.Send(context.Background(), "ada@example.com", "Hello", "<p>hi</p>", ""))
	require.NotNil(t, client.input)
	assert.Equal(t, "Events <events@example.com>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(client.input.Message.Subject.Data))
	require.NotNil(t, client.input.Message.Body.Html)
	assert.Nil(t, client.input.Message.Body.Text)

	client.err = errors.New("throttled")
	err := m.Send(context.Background(), "ada@example.com", "Hello", "", "hi")
	require.ErrorContains(t, err, "throttled")
}

func TestFormatFrom(t *testing.T) {
	assert.Equal(t, "events@example.com", formatFrom("", "events@example.com"))
	assert.Equal(t, "Events <events@example.com>", formatFrom("Events", "events@example.com"))
}
