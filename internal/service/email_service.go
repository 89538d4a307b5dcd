package service

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// sesAPI is the part of the SES client used for sending
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends parent notifications via Amazon SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	enabled   bool
	logger    *zap.Logger
}

// NewEmailService creates a new email service. Without a sender address the
// service is disabled and only logs what it would have sent.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, logger *zap.Logger) (*EmailService, error) {
	if fromEmail == "" {
		logger.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))

	return &EmailService{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		logger:    logger,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendWelcomeEmail greets a parent who just created an account
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, parentName string) error {
	subject := "Welcome to Kidnector!"
	name := html.EscapeString(parentName)

	htmlBody := fmt.Sprintf(emailLayout, "Welcome to Kidnector!", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>Thanks for joining Kidnector. Your 7-day free trial has started.</p>
			<p>Add your children in the app, pick their daily screen time, and they can start
			recording their first affirmation today.</p>`, name))

	textBody := fmt.Sprintf(`Hi %s,

Thanks for joining Kidnector. Your 7-day free trial has started.

Add your children in the app, pick their daily screen time, and they can start recording their first affirmation today.
`+textFooter, parentName)

	return s.send(ctx, "welcome", toEmail, subject, htmlBody, textBody)
}

// SendPendingApprovalEmail tells a parent that a child submitted today's affirmation
func (s *EmailService) SendPendingApprovalEmail(ctx context.Context, toEmail, parentName, childName string) error {
	subject := fmt.Sprintf("%s recorded today's affirmation", childName)

	htmlBody := fmt.Sprintf(emailLayout, "A new recording is waiting", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p><strong>%s</strong> just recorded today's affirmation.</p>
			<p>Open Kidnector to listen and approve their screen time, or ask them to try again.</p>`,
		html.EscapeString(parentName), html.EscapeString(childName)))

	textBody := fmt.Sprintf(`Hi %s,

%s just recorded today's affirmation.

Open Kidnector to listen and approve their screen time, or ask them to try again.
`+textFooter, parentName, childName)

	return s.send(ctx, "pending_approval", toEmail, subject, htmlBody, textBody)
}

const textFooter = `
---
This is an automated email from Kidnector. Please do not reply.
`

// emailLayout takes the heading and the content paragraphs
const emailLayout = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #6c5ce7; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">%s
		</div>
		<div class="footer">
			<p>This is an automated email from Kidnector. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`

func (s *EmailService) send(ctx context.Context, kind, toEmail, subject, htmlBody, textBody string) error {
	if s == nil {
		return nil
	}
	if !s.enabled {
		s.logger.Info("skipping email (service disabled)", zap.String("kind", kind), zap.String("to", toEmail))
		return nil
	}

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
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

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("kind", kind), zap.String("to", toEmail)}
	if result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("email sent", fields...)
	return nil
}
