// Package worker wraps the asynq dispatch table. Handlers are registered by
// task type at startup; the analysis batch task is the only producer today.
package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

// HandleFunc binds a task type (e.g. the analyze task) to its handler.
func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }
