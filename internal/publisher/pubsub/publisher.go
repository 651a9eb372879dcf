// Package pubsub publishes inspection records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// KeyAttribute carries the record key (the provider URN) on each message.
const KeyAttribute = "urn"

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	attrs  map[string]string
}

// Config names the topic and static attributes added to every message.
type Config struct {
	ProjectID  string
	Topic      string
	Attributes map[string]string
}

// Open connects to Pub/Sub and returns a Publisher for cfg.Topic. The topic
// must already exist.
func Open(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, errors.New("pubsub.project_id and pubsub.topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	p := New(client.Topic(cfg.Topic), cfg.Attributes)
	p.client = client
	return p, nil
}

// New creates a Publisher for an existing topic handle.
func New(topic *pubsub.Topic, attrs map[string]string) *Publisher {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Publisher{topic: topic, attrs: copied}
}

// Publish marshals the payload to JSON and publishes it, waiting for the
// server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, key string, payload any) (string, error) {
	if p.topic == nil {
		return "", errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string, len(p.attrs)+1)}
	for k, v := range p.attrs {
		msg.Attributes[k] = v
	}
	if key != "" {
		msg.Attributes[KeyAttribute] = key
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
