// internal/common/aws/ses.go

// Package aws wraps the SDK clients behind the narrow surfaces the
// notification channels consume.
package aws

import (
	"context"

	appconfig "admission-workers/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// SESClient delivers prediction-completion emails. It satisfies
// notify.SESService.
type SESClient struct {
	client *ses.Client
}

// NewSESClient dials SES in the region the notification config names,
// resolving credentials from the default provider chain.
func NewSESClient(ctx context.Context, cfg appconfig.NotificationConfig) (*SESClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(awsCfg)}, nil
}

func (c *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	return c.client.SendEmail(ctx, input)
}
