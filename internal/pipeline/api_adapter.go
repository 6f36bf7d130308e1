package pipeline

import (
	"unshub/internal/api"
)

// Adapter exposes the Pipeline through the api service locator.
type Adapter struct {
	pipeline *Pipeline
}

// NewAdapter creates an adapter for the given pipeline.
func NewAdapter(pipeline *Pipeline) *Adapter {
	return &Adapter{pipeline: pipeline}
}

// Register registers the adapter as the pipeline handler.
func (a *Adapter) Register() {
	api.RegisterPipeline(a)
}

func (a *Adapter) Enqueue(dp api.DataPoint) bool {
	return a.pipeline.Enqueue(dp)
}

func (a *Adapter) Stats() api.PipelineStats {
	return a.pipeline.Stats()
}
