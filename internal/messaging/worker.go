package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"chatbot-trainer/internal/train"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, mode train.Mode, args train.Args) (string, error)
}

// Worker consumes train tasks and runs them through a Dispatcher.
type Worker struct {
	Dispatcher  Dispatcher
	Reciever    Reciever
	Concurrency int
}

// Run blocks until ctx is cancelled or the task channel is closed and all
// in-flight tasks have finished.
func (w *Worker) Run(ctx context.Context) {
	concurrency := max(w.Concurrency, 1)
	slog.Info("starting worker", "concurrency", concurrency)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	wg.Wait()

	slog.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context, id int) {
	tasks := w.Reciever.Tasks()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.processTask(ctx, id, task)
		}
	}
}

func (w *Worker) processTask(ctx context.Context, id int, task Task) {
	if task.Type() != TrainingQueue {
		slog.Error("received task from unknown queue, discarding", "worker", id, "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	var payload TrainTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error unmarshalling train task", "worker", id, "error", err, "body", string(task.Payload()))
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	slog.Info("handling train task", "worker", id, "mode", payload.Mode)

	model, err := w.Dispatcher.Dispatch(ctx, payload.Mode, payload.Flags.Args())
	if err != nil {
		slog.Error("train task failed", "worker", id, "mode", payload.Mode, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "error", err)
		}
		return
	}

	slog.Info("train task completed", "worker", id, "mode", payload.Mode, "model", model)
	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "error", err)
	}
}
