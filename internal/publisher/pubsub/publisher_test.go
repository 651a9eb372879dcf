package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublisherPublishesJSONWithKey(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "inspection-records")
	require.NoError(t, err)

	pub := New(topic, map[string]string{"run_id": "run-1"})
	id, err := pub.Publish(ctx, "80432", map[string]any{"urn": "80432", "outcome_grade": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "80432", msgs[0].Attributes[KeyAttribute])
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "80432", got["urn"])
}

func TestPublisherWithoutTopic(t *testing.T) {
	_, err := (&Publisher{}).Publish(context.Background(), "k", "v")
	require.Error(t, err)
}

func TestOpenRequiresConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Topic: "t"})
	require.Error(t, err)
}
