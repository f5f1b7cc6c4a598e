package s3

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/imamik/stagehand/internal/config"
)

// ErrNotPublished is returned when no settings were published for a stack.
var ErrNotPublished = errors.New("network settings are not published")

const settingsObject = "network_config.yaml"

// Publisher stores the network settings of stacks under
// <prefix>/<stack>/network_config.yaml.
type Publisher struct {
	client *Client
	bucket string
	prefix string
}

// NewPublisher creates a publisher for settings. It fails when publishing
// is not configured.
func NewPublisher(settings config.PublishSettings) (*Publisher, error) {
	if !settings.Enabled() {
		return nil, errors.New("publishing needs publish.endpoint and publish.bucket in the tool configuration")
	}
	client, err := NewClient(settings)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, bucket: settings.Bucket, prefix: settings.Prefix}, nil
}

// Key is the object key of the stack's settings.
func (p *Publisher) Key(stack string) string {
	return path.Join(p.prefix, stack, settingsObject)
}

// Publish uploads the settings file contents and returns its location.
func (p *Publisher) Publish(ctx context.Context, stack string, data []byte) (string, error) {
	if err := p.client.EnsureBucket(ctx, p.bucket); err != nil {
		return "", err
	}
	key := p.Key(stack)
	if err := p.client.PutObject(ctx, p.bucket, key, "application/yaml", data); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

// Fetch downloads the published settings of the stack.
func (p *Publisher) Fetch(ctx context.Context, stack string) ([]byte, error) {
	return p.client.GetObject(ctx, p.bucket, p.Key(stack))
}

// Unpublish removes the published settings of the stack.
func (p *Publisher) Unpublish(ctx context.Context, stack string) error {
	return p.client.DeleteObject(ctx, p.bucket, p.Key(stack))
}
