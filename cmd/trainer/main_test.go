package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chatbot-trainer/internal/config"
	"chatbot-trainer/internal/database"
	"chatbot-trainer/internal/messaging"
	"chatbot-trainer/internal/train"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type dispatchCall struct {
	mode train.Mode
	args train.Args
}

type fakeDispatcher struct {
	calls  []dispatchCall
	result string
	err    error
	after  func()
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, mode train.Mode, args train.Args) (string, error) {
	d.calls = append(d.calls, dispatchCall{mode: mode, args: args})
	if d.after != nil {
		d.after()
	}
	return d.result, d.err
}

type testEnv struct {
	dispatcher *fakeDispatcher
	queue      *messaging.InMemoryQueue
	db         *gorm.DB
	released   bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Setenv("LOG_LEVEL", "error")
	return &testEnv{
		dispatcher: &fakeDispatcher{result: "models/20240101-120000.tar.gz"},
		queue:      messaging.NewInMemoryQueue(),
	}
}

func (e *testEnv) deps() deps {
	return deps{
		newDispatcher: func(ctx context.Context, cfg *config.Config) (messaging.Dispatcher, func(), error) {
			return e.dispatcher, func() { e.released = true }, nil
		},
		newPublisher: func(cfg *config.Config) (messaging.Publisher, error) { return e.queue, nil },
		newReceiver:  func(cfg *config.Config) (messaging.Reciever, error) { return e.queue, nil },
		openRegistry: func(cfg *config.Config) (*gorm.DB, error) { return e.db, nil },
	}
}

func execute(t *testing.T, ctx context.Context, e *testEnv, args ...string) (string, error) {
	root := newRootCmd(e.deps())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestTrainCombinedFlags(t *testing.T) {
	e := newTestEnv(t)

	out, err := execute(t, context.Background(), e, "train", "--config", "config.yml", "--data", "data/nlu.md", "--data", "data/stories.md", "--force", "--debug-plots")
	require.NoError(t, err)
	assert.Contains(t, out, "models/20240101-120000.tar.gz")
	assert.True(t, e.released)

	require.Len(t, e.dispatcher.calls, 1)
	call := e.dispatcher.calls[0]
	assert.Equal(t, train.ModeCombined, call.mode)
	assert.Equal(t, train.SingleConfig{Path: "config.yml"}, call.args.Config)
	assert.Equal(t, []string{"data/nlu.md", "data/stories.md"}, call.args.Data)
	assert.Equal(t, "models", call.args.Out)
	assert.True(t, call.args.Force)
	assert.Empty(t, call.args.Domain)

	require.NotNil(t, call.args.Augmentation)
	assert.Equal(t, 50, *call.args.Augmentation)
	require.NotNil(t, call.args.DumpStories)
	assert.False(t, *call.args.DumpStories)
	require.NotNil(t, call.args.DebugPlots)
	assert.True(t, *call.args.DebugPlots)
}

func TestTrainCombinedDefaults(t *testing.T) {
	e := newTestEnv(t)

	_, err := execute(t, context.Background(), e, "train")
	require.NoError(t, err)

	call := e.dispatcher.calls[0]
	assert.Equal(t, train.SingleConfig{}, call.args.Config)
	assert.Equal(t, []string{"data"}, call.args.Data)
}

func TestTrainCoreCompareFlags(t *testing.T) {
	e := newTestEnv(t)
	e.dispatcher.result = ""

	out, err := execute(t, context.Background(), e, "train", "core", "-c", "a.yml", "-c", "b.yml", "--stories", "stories.md", "--runs", "2", "--percentages", "0,50", "--augmentation", "10")
	require.NoError(t, err)
	assert.Empty(t, out)

	call := e.dispatcher.calls[0]
	assert.Equal(t, train.ModeCore, call.mode)
	assert.Equal(t, train.CompareConfigs{Paths: []string{"a.yml", "b.yml"}}, call.args.Config)
	assert.Equal(t, "stories.md", call.args.Stories)
	assert.Equal(t, 2, call.args.Runs)
	assert.Equal(t, []int{0, 50}, call.args.Percentages)
	assert.Equal(t, 10, *call.args.Augmentation)
}

func TestTrainCoreSingleConfig(t *testing.T) {
	e := newTestEnv(t)

	_, err := execute(t, context.Background(), e, "train", "core", "--config", "policies.yml")
	require.NoError(t, err)

	assert.Equal(t, train.SingleConfig{Path: "policies.yml"}, e.dispatcher.calls[0].args.Config)
}

func TestTrainNluHasNoOptions(t *testing.T) {
	e := newTestEnv(t)

	_, err := execute(t, context.Background(), e, "train", "nlu", "--nlu", "data/nlu.md", "--fixed-model-name", "nlu-model", "--store-uncompressed")
	require.NoError(t, err)

	call := e.dispatcher.calls[0]
	assert.Equal(t, train.ModeNlu, call.mode)
	assert.Equal(t, "data/nlu.md", call.args.Nlu)
	assert.Equal(t, "nlu-model", call.args.FixedModelName)
	assert.True(t, call.args.StoreUncompressed)
	assert.Nil(t, call.args.Augmentation)
	assert.Nil(t, call.args.DumpStories)
	assert.Nil(t, call.args.DebugPlots)
	assert.Empty(t, train.ExtractAdditionalOptions(call.args).Map())
}

func TestTrainNluRejectsCoreFlags(t *testing.T) {
	e := newTestEnv(t)

	_, err := execute(t, context.Background(), e, "train", "nlu", "--augmentation", "10")
	assert.Error(t, err)
	assert.Empty(t, e.dispatcher.calls)
}

func TestTrainError(t *testing.T) {
	e := newTestEnv(t)
	e.dispatcher.err = errors.New("path not found")

	_, err := execute(t, context.Background(), e, "train")
	assert.ErrorIs(t, err, e.dispatcher.err)
}

func TestTrainRemote(t *testing.T) {
	e := newTestEnv(t)

	out, err := execute(t, context.Background(), e, "train", "core", "--remote", "--stories", "stories.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued core training")
	assert.Empty(t, e.dispatcher.calls)

	task, ok := <-e.queue.Tasks()
	require.True(t, ok)
	assert.Equal(t, messaging.TrainingQueue, task.Type())

	var payload messaging.TrainTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, train.ModeCore, payload.Mode)
	assert.Equal(t, "stories.md", payload.Flags.Stories)
	assert.Equal(t, 50, *payload.Flags.Augmentation)
}

func TestWorkerDispatchesQueuedTasks(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.queue.PublishTrainTask(ctx, messaging.TrainTaskPayload{
		Mode:  train.ModeNlu,
		Flags: train.Flags{Nlu: "data/nlu.md", Out: "models"},
	}))
	e.dispatcher.after = cancel

	_, err := execute(t, ctx, e, "worker")
	require.NoError(t, err)

	require.Len(t, e.dispatcher.calls, 1)
	assert.Equal(t, train.ModeNlu, e.dispatcher.calls[0].mode)
	assert.Equal(t, "data/nlu.md", e.dispatcher.calls[0].args.Nlu)
	assert.True(t, e.released)
}

func TestRuns(t *testing.T) {
	e := newTestEnv(t)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())
	e.db = db

	id, err := database.CreateRun(context.Background(), db, "nlu", "config.yml", "models")
	require.NoError(t, err)
	require.NoError(t, database.UpdateRunStatus(context.Background(), db, id, database.RunTrained, database.RunUpdate{ModelPath: "models/nlu.tar.gz"}))

	out, err := execute(t, context.Background(), e, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, database.RunTrained)
	assert.Contains(t, out, "models/nlu.tar.gz")
}

func TestRunsWithoutRegistry(t *testing.T) {
	e := newTestEnv(t)

	_, err := execute(t, context.Background(), e, "runs")
	assert.Error(t, err)
}

func TestEnvFileFlag(t *testing.T) {
	e := newTestEnv(t)
	t.Setenv("TRAINER_REGISTRY_DSN", "")
	require.NoError(t, os.Unsetenv("TRAINER_REGISTRY_DSN"))

	envFile := filepath.Join(t.TempDir(), "trainer.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TRAINER_REGISTRY_DSN=/tmp/registry/runs.db\n"), 0644))

	var dsn string
	d := e.deps()
	d.openRegistry = func(cfg *config.Config) (*gorm.DB, error) {
		dsn = cfg.RegistryDSN
		return nil, nil
	}

	root := newRootCmd(d)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"runs", "--env", envFile})
	assert.Error(t, root.Execute())
	assert.Equal(t, "/tmp/registry/runs.db", dsn)
}
