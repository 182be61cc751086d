// Package mail delivers invitation email through Amazon SES.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/pkg/config"
)

// Mailer sends invitation notifications via SES. A disabled mailer accepts
// every send and does nothing, so callers never need to branch on
// configuration.
type Mailer struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	baseURL     string
	enabled     bool
	logger      *slog.Logger
}

// NewMailer creates a mailer from configuration. When mail is disabled the
// returned mailer is a no-op and no AWS credentials are required.
func NewMailer(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (*Mailer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Enabled {
		logger.Info("mail delivery disabled")
		return &Mailer{enabled: false, logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	logger.Info("mail delivery enabled", "from", cfg.FromAddress, "region", cfg.Region)
	return &Mailer{
		client:      sesv2.NewFromConfig(awsCfg),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		baseURL:     cfg.BaseURL,
		enabled:     true,
		logger:      logger,
	}, nil
}

// IsEnabled reports whether the mailer actually sends email.
func (m *Mailer) IsEnabled() bool {
	return m.enabled
}

// SendInvitation emails the invitee a link to view and respond to the
// invitation.
func (m *Mailer) SendInvitation(ctx context.Context, inv *models.Invitation, inviterName string) error {
	if !m.enabled {
		m.logger.Debug("skipping invitation email, mail disabled", "invitation_id", inv.ID)
		return nil
	}

	link := fmt.Sprintf("%s/invitations/%s", m.baseURL, inv.Token)
	subject := fmt.Sprintf("%s invited you to join their family network", inviterName)

	intro := fmt.Sprintf("%s has invited you to connect on Kinship.", inviterName)
	if inv.IntendedRelationship != "" {
		intro = fmt.Sprintf("%s has invited you to connect on Kinship as their %s.",
			inviterName, inv.IntendedRelationship)
	}

	var personal string
	if inv.Message != "" {
		personal = fmt.Sprintf("<p><em>%q</em></p>", inv.Message)
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>You're invited</h2>
		<p>%s</p>
		%s
		<p style="text-align: center;">
			<a href="%s" style="display: inline-block; padding: 12px 30px; background-color: #4a7c59; color: white; text-decoration: none; border-radius: 5px;">View Invitation</a>
		</p>
		<p>Or copy this link into your browser:</p>
		<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
		<p>This invitation expires on %s.</p>
	</div>
</body>
</html>`, intro, personal, link, link, inv.ExpiresAt.Format("January 2, 2006"))

	textBody := fmt.Sprintf(`%s

View the invitation: %s

This invitation expires on %s.
`, intro, link, inv.ExpiresAt.Format("January 2, 2006"))

	if err := m.send(ctx, inv.InviteeEmail, subject, htmlBody, textBody); err != nil {
		return err
	}

	m.logger.Info("sent invitation email", "invitation_id", inv.ID)
	return nil
}

func (m *Mailer) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	from := m.fromAddress
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sending email to %s: %w", toEmail, err)
	}
	return nil
}
