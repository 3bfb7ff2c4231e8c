package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/devansh728/BYVS/internal/logger"
)

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	From              string
	StatusCallbackURL string
	// Timeout caps each API request. Zero means defaultTwilioTimeout.
	Timeout time.Duration
}

const defaultTwilioTimeout = 15 * time.Second

// TwilioService sends plain SMS through the Twilio Messages API.
type TwilioService struct {
	client         *twilio.RestClient
	from           string
	statusCallback string
	log            *slog.Logger
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg TwilioConfig, log *slog.Logger) (*TwilioService, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTwilioTimeout
	}
	client.SetTimeout(timeout)

	return &TwilioService{
		client:         client,
		from:           cfg.From,
		statusCallback: cfg.StatusCallbackURL,
		log:            log.With(logger.Module("services.twilio")),
	}, nil
}

// SendSMS sends body to the E.164 number to. The Twilio client takes no
// context, so ctx is only checked before the request; the client timeout
// bounds the request itself.
func (t *TwilioService) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)
	if t.statusCallback != "" {
		params.SetStatusCallback(t.statusCallback)
	}

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.Debug("sms sent", logger.Secret("to", to), slog.String("sid", sid))
	return nil
}

// LogSender stands in for Twilio when no credentials are configured. It logs
// the recipient and size only, never the body.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(logger.Module("services.sms"))}
}

func (l *LogSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.log.Info("sms not sent, twilio disabled", logger.Secret("to", to), slog.Int("bytes", len(body)))
	return nil
}
