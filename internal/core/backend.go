package core

import (
	"fmt"
	"os"
	"os/exec"

	"chatbot-trainer/plugin/shared"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// PluginBackend runs training in an external backend process.
// TODO: the plugin client is not safe for concurrent Release calls, guard it
// with a mutex once backends are shared between workers.
type PluginBackend struct {
	client  *plugin.Client
	backend shared.Backend
}

func LoadPluginBackend(command string, args ...string) (*PluginBackend, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: shared.Handshake,
		Plugins:         shared.PluginMap,
		Cmd:             exec.Command(command, args...),
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "backend",
			Output: os.Stderr,
			Level:  hclog.Warn,
		}),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.BackendPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.BackendPluginName, err)
	}

	backend, ok := raw.(shared.Backend)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Backend (actual type: %T)", shared.BackendPluginName, raw)
	}

	return &PluginBackend{client: client, backend: backend}, nil
}

func (b *PluginBackend) Train(job shared.TrainJob) (shared.TrainResult, error) {
	if b.backend == nil {
		return shared.TrainResult{}, fmt.Errorf("backend has been released")
	}
	return b.backend.Train(job)
}

func (b *PluginBackend) Release() {
	if b.client == nil {
		return
	}

	b.client.Kill()
	b.client = nil
	b.backend = nil
}
