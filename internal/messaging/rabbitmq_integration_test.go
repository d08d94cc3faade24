//go:build integration
// +build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chatbot-trainer/internal/train"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.11-management")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	return connStr
}

func TestRabbitMQTrainTaskRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	url := setupRabbitMQContainer(t, ctx)

	publisher, err := NewRabbitMQPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	receiver, err := NewRabbitMQReceiver(url)
	require.NoError(t, err)
	defer receiver.Close()

	augmentation := 20
	payload := TrainTaskPayload{
		Mode: train.ModeCore,
		Flags: train.Flags{
			Domain:       "domain.yml",
			Config:       []string{"a.yml", "b.yml"},
			Out:          "models",
			Augmentation: &augmentation,
		},
	}
	require.NoError(t, publisher.PublishTrainTask(ctx, payload))

	select {
	case task := <-receiver.Tasks():
		assert.Equal(t, TrainingQueue, task.Type())

		var got TrainTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &got))
		assert.Equal(t, payload, got)

		require.NoError(t, task.Ack())
	case <-ctx.Done():
		t.Fatal("timed out waiting for train task")
	}
}
