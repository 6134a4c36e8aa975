// Package pubsub wraps the Cloud Pub/Sub v2 client used by the outbox relay.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("at least one pubsub topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// topicAdmin is the slice of the generated admin client used for topic
// checks.
type topicAdmin interface {
	GetTopic(context.Context, *pubsubpb.GetTopicRequest, ...gax.CallOption) (*pubsubpb.Topic, error)
	CreateTopic(context.Context, *pubsubpb.Topic, ...gax.CallOption) (*pubsubpb.Topic, error)
}

type Client struct {
	client    *pubsub.Client
	admin     topicAdmin
	projectID string
	topics    []string
	// emulator mode creates missing topics instead of failing
	emulator bool
}

// NewClient dials Pub/Sub for the project and verifies every outbox topic.
// A configured endpoint means the local emulator: it is dialed without
// credentials and missing topics are created on the spot.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:    ps,
		admin:     ps.TopicAdminClient,
		projectID: project,
		topics:    topicNames(cfg),
		emulator:  strings.TrimSpace(cfg.Endpoint) != "",
	}
	if err := c.ensureTopics(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"topics": c.topics, "emulator": c.emulator}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(cfg config.PubSubConfig) []option.ClientOption {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(endpoint),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// topicNames returns the configured topics trimmed and deduplicated, in
// configuration order.
func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, raw := range []string{cfg.SalesTopic, cfg.InventoryTopic} {
		if name := strings.TrimSpace(raw); name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// ensureTopics looks every topic up concurrently and fails on the first one
// that is missing or unreachable.
func (c *Client) ensureTopics(ctx context.Context) error {
	if len(c.topics) == 0 {
		return errNoTopics
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.topics {
		g.Go(func() error { return c.ensureTopic(gctx, name) })
	}
	return g.Wait()
}

func (c *Client) ensureTopic(ctx context.Context, name string) error {
	full := topicResourceName(c.projectID, name)
	_, err := c.admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", name, err)
	case !c.emulator:
		return fmt.Errorf("topic %q does not exist", name)
	}
	_, err = c.admin.CreateTopic(ctx, &pubsubpb.Topic{Name: full})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating emulator topic %q: %w", name, err)
	}
	return nil
}

// Publisher returns a handle for the topic, or nil when the client is not
// usable. Callers own the handle and must Stop it.
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

// Ping re-checks the topics, which also proves the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotInitialized
	}
	return c.ensureTopics(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// topicResourceName expands a bare topic id to projects/<p>/topics/<id>;
// full resource names pass through.
func topicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
