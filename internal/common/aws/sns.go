// internal/common/aws/sns.go
package aws

import (
	"context"

	appconfig "admission-workers/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient delivers prediction-completion SMS messages. It satisfies
// notify.SNSService.
type SNSClient struct {
	client *sns.Client
}

// NewSNSClient dials SNS in the region the notification config names.
func NewSNSClient(ctx context.Context, cfg appconfig.NotificationConfig) (*SNSClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(awsCfg)}, nil
}

func (c *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return c.client.Publish(ctx, input)
}
