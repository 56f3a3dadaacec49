package mail

import (
	"context"
	"fmt"

	"mailer-server/internal/observability"

	"github.com/resendlabs/resend-go"
)

// Attachment is a file sent along with a message
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is a fully prepared email handed to the delivery provider
type Message struct {
	From          string
	To            string
	ReplyTo       string
	Subject       string
	TextBody      string
	HTMLBody      string
	MessageStream string
	Attachments   []Attachment
}

type ResendClient struct {
	client *resend.Client
	logger *observability.Logger
}

func NewResendClient(apiKey string, logger *observability.Logger) (*ResendClient, error) {
	client := resend.NewClient(apiKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Resend client")
	}

	return &ResendClient{
		client: client,
		logger: logger,
	}, nil
}

// Deliver submits the message to Resend and returns the provider message id
func (c *ResendClient) Deliver(ctx context.Context, msg Message) (string, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "email_to", Value: msg.To},
		observability.Field{Key: "email_subject", Value: msg.Subject},
	)

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Text:    msg.TextBody,
		Html:    msg.HTMLBody,
	}
	if msg.MessageStream != "" {
		params.Headers = map[string]string{"X-Message-Stream": msg.MessageStream}
	}
	for _, a := range msg.Attachments {
		params.Attachments = append(params.Attachments, resend.Attachment{
			Filename: a.Filename,
			Content:  string(a.Content),
		})
	}

	res, err := c.client.Emails.Send(params)
	if err != nil {
		c.logger.Error(ctx, "failed to send email", err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info(ctx, "email sent successfully")
	return res.Id, nil
}
