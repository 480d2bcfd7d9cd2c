// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"admission-workers/internal/common/config"
	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESService is the slice of the SES API the notifier uses.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SNSService is the slice of the SNS API the notifier uses.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier tells a student that their prediction run has reached a terminal
// state. Delivery failures never fail the pipeline; callers fire and forget.
type Notifier interface {
	PredictionCompleted(ctx context.Context, result *models.PredictionResult, email, phone string)
}

// AWSNotifier sends completion notifications over SES email and SNS SMS.
type AWSNotifier struct {
	ses    SESService
	sns    SNSService
	config config.NotificationConfig
	logger logger.Logger
}

func NewAWSNotifier(sesSvc SESService, snsSvc SNSService, cfg config.NotificationConfig, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		ses:    sesSvc,
		sns:    snsSvc,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// PredictionCompleted delivers a terminal-state notification on every enabled
// channel. Missing contact details for a channel skip that channel silently.
func (n *AWSNotifier) PredictionCompleted(ctx context.Context, result *models.PredictionResult, email, phone string) {
	subject, body := n.composeMessage(result)

	if n.config.Email.Enabled && email != "" {
		if err := n.sendEmail(ctx, email, subject, body); err != nil {
			n.logger.Warn("completion email not delivered", map[string]interface{}{
				"studentId": result.StudentID,
				"error":     err.Error(),
			})
		}
	}

	if n.config.SMS.Enabled && phone != "" {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			n.logger.Warn("completion SMS not delivered", map[string]interface{}{
				"studentId": result.StudentID,
				"error":     err.Error(),
			})
		}
	}
}

func (n *AWSNotifier) composeMessage(result *models.PredictionResult) (subject, body string) {
	switch result.Status {
	case models.PredictionStatusCompleted:
		subject = "Your admission predictions are ready"
		body = "All admission predictions for your profile have been computed. Sign in to review your recommended programs."
	case models.PredictionStatusPartial:
		subject = "Your admission predictions are partially ready"
		body = "Some admission predictions finished while others are still being retried. Available results are ready to review."
	default:
		subject = "Admission prediction update"
		body = fmt.Sprintf("Your prediction run finished with status %s.", result.Status)
	}
	return subject, body
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(n.config.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	}

	if _, err := n.ses.SendEmail(ctx, input); err != nil {
		return errors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (n *AWSNotifier) sendSMS(ctx context.Context, phone, body string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(body),
	}

	if _, err := n.sns.Publish(ctx, input); err != nil {
		return errors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}

// NoOpNotifier is used when both channels are disabled.
type NoOpNotifier struct{}

func (NoOpNotifier) PredictionCompleted(context.Context, *models.PredictionResult, string, string) {}
