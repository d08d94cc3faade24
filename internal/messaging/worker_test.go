package messaging_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chatbot-trainer/internal/messaging"
	"chatbot-trainer/internal/train"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchCall struct {
	mode train.Mode
	args train.Args
}

type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, mode train.Mode, args train.Args) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatchCall{mode: mode, args: args})
	if m.err != nil {
		return "", m.err
	}
	return "models/model.tar.gz", nil
}

type trackedTask struct {
	messaging.Task
	acked, nacked, rejected bool
}

func (t *trackedTask) Ack() error    { t.acked = true; return nil }
func (t *trackedTask) Nack() error   { t.nacked = true; return nil }
func (t *trackedTask) Reject() error { t.rejected = true; return nil }

type rawTask struct {
	queue   string
	payload []byte
}

func (t rawTask) Type() string    { return t.queue }
func (t rawTask) Payload() []byte { return t.payload }
func (t rawTask) Ack() error      { return nil }
func (t rawTask) Nack() error     { return nil }
func (t rawTask) Reject() error   { return nil }

type sliceReciever struct {
	tasks chan messaging.Task
}

func newSliceReciever(tasks ...messaging.Task) *sliceReciever {
	ch := make(chan messaging.Task, len(tasks))
	for _, t := range tasks {
		ch <- t
	}
	close(ch)
	return &sliceReciever{tasks: ch}
}

func (r *sliceReciever) Tasks() <-chan messaging.Task { return r.tasks }
func (r *sliceReciever) Close()                       {}

func TestInMemoryQueuePublishAfterClose(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	queue.Close()

	err := queue.PublishTrainTask(context.Background(), messaging.TrainTaskPayload{Mode: train.ModeNlu})
	require.ErrorIs(t, err, messaging.ErrQueueClosed)

	_, ok := <-queue.Tasks()
	assert.False(t, ok)
}

func TestInMemoryQueueRoundTrip(t *testing.T) {
	queue := messaging.NewInMemoryQueue()

	augmentation := 20
	payload := messaging.TrainTaskPayload{
		Mode: train.ModeCore,
		Flags: train.Flags{
			Config:       []string{"a.yml", "b.yml"},
			Out:          "results",
			Augmentation: &augmentation,
		},
	}
	require.NoError(t, queue.PublishTrainTask(context.Background(), payload))
	queue.Close()
	queue.Close()

	dispatcher := &mockDispatcher{}
	worker := messaging.Worker{Dispatcher: dispatcher, Reciever: queue, Concurrency: 2}
	worker.Run(context.Background())

	require.Len(t, dispatcher.calls, 1)
	call := dispatcher.calls[0]
	assert.Equal(t, train.ModeCore, call.mode)
	assert.Equal(t, train.CompareConfigs{Paths: []string{"a.yml", "b.yml"}}, call.args.Config)
	assert.Equal(t, "results", call.args.Out)
	require.NotNil(t, call.args.Augmentation)
	assert.Equal(t, 20, *call.args.Augmentation)
	assert.Nil(t, call.args.DumpStories)
}

func TestWorkerAcknowledgement(t *testing.T) {
	valid := []byte(`{"Mode":"nlu","Flags":{"config":["config.yml"]}}`)

	success := &trackedTask{Task: rawTask{queue: messaging.TrainingQueue, payload: valid}}
	malformed := &trackedTask{Task: rawTask{queue: messaging.TrainingQueue, payload: []byte("{")}}
	unknown := &trackedTask{Task: rawTask{queue: "other_queue", payload: valid}}

	worker := messaging.Worker{Dispatcher: &mockDispatcher{}, Reciever: newSliceReciever(success, malformed, unknown)}
	worker.Run(context.Background())

	assert.True(t, success.acked)
	assert.True(t, malformed.rejected)
	assert.True(t, unknown.rejected)
	assert.False(t, success.nacked)
}

func TestWorkerNacksFailedDispatch(t *testing.T) {
	task := &trackedTask{Task: rawTask{queue: messaging.TrainingQueue, payload: []byte(`{"Mode":"combined"}`)}}

	dispatcher := &mockDispatcher{err: errors.New("training failed")}
	worker := messaging.Worker{Dispatcher: dispatcher, Reciever: newSliceReciever(task)}
	worker.Run(context.Background())

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, train.ModeCombined, dispatcher.calls[0].mode)
	assert.True(t, task.nacked)
	assert.False(t, task.acked)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := messaging.Worker{Dispatcher: &mockDispatcher{}, Reciever: queue}
	worker.Run(ctx)
}
