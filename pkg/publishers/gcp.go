package publishers

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type gcpPubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

func newGCPPubSubSender(ctx context.Context, cfg *GCPQueueConfig, log Logger) (queueSender, error) {
	if cfg == nil {
		return nil, errors.New("gcp queue configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client for project %s: %w", cfg.ProjectID, err)
	}
	return &gcpPubSubSender{client: client, topic: client.Topic(cfg.Topic), log: ensureLogger(log)}, nil
}

// Send blocks until Pub/Sub acknowledges the message.
func (s *gcpPubSubSender) Send(ctx context.Context, evt Event) error {
	body, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	id, err := s.topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: evt.Attributes()}).Get(ctx)
	if err != nil {
		return fmt.Errorf("pubsub publish to %s: %w", s.topic.ID(), err)
	}
	s.log.DebugObj("event published to pubsub", "publisher_gcp_pubsub_delivery", map[string]any{
		"message_id": id,
		"event_id":   evt.ID,
		"topic":      s.topic.ID(),
	})
	return nil
}

// Close flushes buffered messages before closing the client.
func (s *gcpPubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
