// File: internal/usecase/stages.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
)

// StageContext is everything a handler may read about the job's owner.
// Application is nil for requisition-level jobs.
type StageContext struct {
	Application *model.Application
	Requisition *model.Requisition
	Now         time.Time
}

// StageHandler executes one job type. Implementations classify every failure before returning;
// they never write Application.status.
type StageHandler interface {
	Type() model.JobType
	// Next lists the job types a success may enqueue.
	Next() []model.JobType
	Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult
}

// StageRegistry maps each job type to its handler. It performs no I/O.
type StageRegistry struct {
	handlers map[model.JobType]StageHandler
}

func NewStageRegistry(handlers ...StageHandler) *StageRegistry {
	r := &StageRegistry{handlers: make(map[model.JobType]StageHandler, len(handlers))}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register panics on a duplicate or unknown job type; both are wiring bugs.
func (r *StageRegistry) Register(h StageHandler) {
	t := h.Type()
	if _, err := model.ParseJobType(string(t)); err != nil {
		panic(fmt.Sprintf("stage registry: %v", err))
	}
	if _, dup := r.handlers[t]; dup {
		panic(fmt.Sprintf("stage registry: handler for %q already registered", t))
	}
	r.handlers[t] = h
}

func (r *StageRegistry) Handler(t model.JobType) (StageHandler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoHandler, t)
	}
	return h, nil
}

// Validate reports the first job type without a handler, or a handler that declares a chain
// outside model.NextStages.
func (r *StageRegistry) Validate() error {
	for _, t := range model.AllJobTypes {
		h, ok := r.handlers[t]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNoHandler, t)
		}
		for _, next := range h.Next() {
			if !model.CanChain(t, next) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalChain, t, next)
			}
		}
	}
	return nil
}

// Timeouts bounds each collaborator call independently.
type Timeouts struct {
	TMS       time.Duration
	AI        time.Duration
	Email     time.Duration
	Artifacts time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.TMS <= 0 {
		t.TMS = 30 * time.Second
	}
	if t.AI <= 0 {
		t.AI = 2 * time.Minute
	}
	if t.Email <= 0 {
		t.Email = 15 * time.Second
	}
	if t.Artifacts <= 0 {
		t.Artifacts = 10 * time.Second
	}
	return t
}

// transientUnlessClassified keeps a failure kind chosen further down and treats anything else as transient.
func transientUnlessClassified(op string, err error) error {
	var f *domain.Failure
	if errors.As(err, &f) {
		return err
	}
	return domain.Transient(op, err)
}

// call runs fn under its own deadline.
func call[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}

func requireApplication(sc *StageContext) (*model.Application, error) {
	if sc == nil || sc.Application == nil {
		return nil, domain.Permanent("load application", domain.ErrInvalidArgument)
	}
	return sc.Application, nil
}
