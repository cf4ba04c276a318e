package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type queueSender interface {
	Send(ctx context.Context, evt Event) error
}

type senderFactory func(ctx context.Context, q *QueuePublisherConfig, log Logger) (queueSender, error)

var queueSenders = map[string]senderFactory{
	QueueProviderAWSSQS: func(ctx context.Context, q *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newAWSSQSSender(ctx, q.AWS, log)
	},
	QueueProviderAWSSNS: func(ctx context.Context, q *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newAWSSNSSender(ctx, q.SNS, log)
	},
	QueueProviderGCP: func(ctx context.Context, q *QueuePublisherConfig, log Logger) (queueSender, error) {
		return newGCPPubSubSender(ctx, q.GCP, log)
	},
}

// queuePublisher hands events to a cloud queue or topic.
type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
	log      Logger
}

func newQueuePublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}
	factory, ok := queueSenders[cfg.Queue.Provider]
	if !ok {
		return nil, fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sender, err := factory(ctx, cfg.Queue, log)
	if err != nil {
		return nil, err
	}
	return &queuePublisher{id: cfg.ID, provider: cfg.Queue.Provider, sender: sender, log: ensureLogger(log)}, nil
}

func (p *queuePublisher) ID() string   { return p.id }
func (p *queuePublisher) Type() string { return TypeQueue }

func (p *queuePublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("%s: %w", p.provider, err)
	}
	return nil
}

func (p *queuePublisher) Close() error {
	if c, ok := p.sender.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func encodeEvent(evt Event) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	return body, nil
}
