package shared

import (
	"net/rpc"
)

// RPCClient is the trainer side of a Backend running in another process.
type RPCClient struct{ client *rpc.Client }

func (c *RPCClient) Train(job TrainJob) (TrainResult, error) {
	var result TrainResult
	if err := c.client.Call("Plugin.Train", job, &result); err != nil {
		return TrainResult{}, err
	}
	return result, nil
}

// RPCServer exposes Impl to RPCClient.
type RPCServer struct {
	Impl Backend
}

func (s *RPCServer) Train(job TrainJob, result *TrainResult) error {
	res, err := s.Impl.Train(job)
	if err != nil {
		return err
	}
	*result = res
	return nil
}
