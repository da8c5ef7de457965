// Package pubsub wraps the Pub/Sub v2 client with the orders topic and the
// analytics subscription this service runs on.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
)

const analyticsAckDeadlineSeconds = 60

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client       *pubsub.Client
	projectID    string
	topic        string
	subscription string
	autoCreate   bool
	logg         *logger.Logger
}

// NewClient connects and checks that the orders topic exists, plus the
// analytics subscription when one is configured. With AutoCreate set, a
// missing resource is created instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := topicResourceName(projectID, cfg.OrdersTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:       psClient,
		projectID:    projectID,
		topic:        topic,
		subscription: subscriptionResourceName(projectID, cfg.AnalyticsSubscription),
		autoCreate:   cfg.AutoCreate,
		logg:         logg,
	}
	if err := c.ensureResources(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        c.topic,
			"subscription": c.subscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureResources(ctx context.Context) error {
	topics := c.client.TopicAdminClient
	err := ensure(ctx, c.topic, c.autoCreate,
		func(ctx context.Context) error {
			_, err := topics.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
			return err
		},
		func(ctx context.Context) error {
			_, err := topics.CreateTopic(ctx, &pubsubpb.Topic{Name: c.topic})
			return err
		})
	if err != nil || c.subscription == "" {
		return err
	}

	subs := c.client.SubscriptionAdminClient
	return ensure(ctx, c.subscription, c.autoCreate,
		func(ctx context.Context) error {
			_, err := subs.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
			return err
		},
		func(ctx context.Context) error {
			_, err := subs.CreateSubscription(ctx, &pubsubpb.Subscription{
				Name:               c.subscription,
				Topic:              c.topic,
				AckDeadlineSeconds: analyticsAckDeadlineSeconds,
			})
			return err
		})
}

// ensure looks a resource up and, when allowed, creates it on NotFound. A
// concurrent creator winning the race counts as success.
func ensure(ctx context.Context, name string, create bool, get, mk func(context.Context) error) error {
	err := get(ctx)
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking %q: %w", name, err)
	case !create:
		return fmt.Errorf("%q does not exist", name)
	}
	if err := mk(ctx); err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating %q: %w", name, err)
	}
	return nil
}

// AnalyticsSubscription returns the analytics subscriber, or nil when no
// subscription is configured.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil || c.subscription == "" {
		return nil
	}
	return c.client.Subscriber(c.subscription)
}

// Publisher accepts a topic id or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := topicResourceName(c.projectID, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) OrdersPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.topic)
}

// Ping re-checks the topic and subscription without creating anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	check := *c
	check.autoCreate = false
	return check.ensureResources(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	return resourceName(projectID, name, "topics")
}

func subscriptionResourceName(projectID, name string) string {
	return resourceName(projectID, name, "subscriptions")
}

// resourceName expands a bare id to projects/<project>/<kind>/<id>. Names
// already in that form pass through, even for another project.
func resourceName(projectID, name, kind string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
