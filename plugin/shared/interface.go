package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

const BackendPluginName = "backend"

// Handshake is a common handshake that is shared by the trainer and backend
// processes. It is a UX feature, not a security one.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TRAINER_BACKEND_PLUGIN",
	MagicCookieValue: "5f0c6a4e-train",
}

var PluginMap = map[string]plugin.Plugin{
	BackendPluginName: &BackendPlugin{},
}

const (
	JobCombined = "combined"
	JobCore     = "core"
	JobNlu      = "nlu"
)

// TrainJob is a single training request for the backend. The backend writes
// the unpacked model into OutputDir.
type TrainJob struct {
	Kind          string
	Domain        string
	Config        string
	TrainingFiles []string
	OutputDir     string

	ExclusionPercentage int

	AugmentationFactor *int
	DumpStories        *bool
	DebugPlots         *bool
}

type TrainResult struct {
	// Files lists the files the backend wrote, relative to OutputDir.
	Files []string
}

// Backend is the interface that training engines expose over the plugin
// boundary.
type Backend interface {
	Train(job TrainJob) (TrainResult, error)
}

// BackendPlugin is the plugin.Plugin implementation for Backend. Impl is only
// set on the serving side.
type BackendPlugin struct {
	Impl Backend
}

func (p *BackendPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*BackendPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// Serve runs impl as a backend plugin. Training engines call it from the main
// function of their own binary, which is then passed to the trainer through
// TRAINER_BACKEND_CMD. It does not return.
func Serve(impl Backend) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			BackendPluginName: &BackendPlugin{Impl: impl},
		},
	})
}
