package core_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"chatbot-trainer/plugin/shared"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu   sync.Mutex
	jobs []shared.TrainJob
	err  error
}

func (b *fakeBackend) Train(job shared.TrainJob) (shared.TrainResult, error) {
	b.mu.Lock()
	b.jobs = append(b.jobs, job)
	b.mu.Unlock()

	if b.err != nil {
		return shared.TrainResult{}, b.err
	}
	if err := os.WriteFile(filepath.Join(job.OutputDir, "model.bin"), []byte(job.Kind), 0644); err != nil {
		return shared.TrainResult{}, err
	}
	return shared.TrainResult{Files: []string{"model.bin"}}, nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

func writeFile(t *testing.T, path, content string) string {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type project struct {
	domain  string
	config  string
	stories string
	nlu     string
}

func setupProject(t *testing.T) project {
	dir := t.TempDir()
	return project{
		domain:  writeFile(t, filepath.Join(dir, "domain.yml"), "intents:\n  - greet\n"),
		config:  writeFile(t, filepath.Join(dir, "config.yml"), "language: en\npipeline:\n  - name: WhitespaceTokenizer\npolicies:\n  - name: MemoizationPolicy\n"),
		stories: writeFile(t, filepath.Join(dir, "data", "stories.md"), "## greet\n* greet\n  - utter_greet\n"),
		nlu:     writeFile(t, filepath.Join(dir, "data", "nlu.md"), "## intent:greet\n- hello\n"),
	}
}
