package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretProvider reads the current version of secrets from AWS Secrets Manager.
type AWSSecretProvider struct {
	client secretsManagerAPI
}

// NewAWSSecretProvider builds a provider using the default AWS credential chain.
func NewAWSSecretProvider(ctx context.Context, region string) (*AWSSecretProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AWSSecretProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecret implements SecretProvider.
func (p *AWSSecretProvider) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(name),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	return aws.ToString(out.SecretString), nil
}
