package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/cache"
	"inferd/internal/health"
	"inferd/internal/orchestrator"
	"inferd/internal/task"
	"inferd/pkg/types"
)

// taskStepComplexity is the fixed hint used when running task steps through
// the serving path. Steps are free-form work descriptions, so they route to
// a mid-capability tier rather than the cheapest one.
const taskStepComplexity = 0.6

// Config carries the composed subsystems.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Cache
	Monitor      *health.Monitor
	Ledger       *health.Ledger
	Logger       zerolog.Logger
}

// Service fronts every request: cache first, then the orchestrator; accepted
// responses are written back to the cache.
type Service struct {
	orch    *orchestrator.Orchestrator
	cache   *cache.Cache
	monitor *health.Monitor
	ledger  *health.Ledger
	tasks   *task.Manager
	log     zerolog.Logger
	started time.Time

	// baseCtx bounds background task runs; canceled on shutdown.
	baseCtx context.Context
}

// New wires the facade. The task manager is built here so task steps execute
// through the same cache-then-orchestrator path as queries.
func New(ctx context.Context, cfg Config, taskStore *task.Store, stepRetryCap int) *Service {
	s := &Service{
		orch:    cfg.Orchestrator,
		cache:   cfg.Cache,
		monitor: cfg.Monitor,
		ledger:  cfg.Ledger,
		log:     cfg.Logger,
		started: time.Now(),
		baseCtx: ctx,
	}
	s.tasks = task.NewManager(taskStore, &stepExecutor{svc: s}, stepRetryCap, cfg.Logger)
	return s
}

// Tasks exposes the task manager, for startup recovery and shutdown.
func (s *Service) Tasks() *task.Manager { return s.tasks }

// HandleQuery serves one query: cache hit short-circuits the backend
// entirely; on a miss the orchestrator serves it and a cacheable response is
// stored for next time.
func (s *Service) HandleQuery(ctx context.Context, req types.QueryRequest) (*types.QueryResponse, error) {
	start := time.Now()

	if e, layer, ok := s.cache.Lookup(ctx, req.Query); ok {
		s.log.Debug().Str("layer", string(layer)).Msg("event=cache_hit")
		return &types.QueryResponse{
			Response:   e.Response,
			LatencyMS:  time.Since(start).Milliseconds(),
			CacheHit:   true,
			CacheLayer: string(layer),
		}, nil
	}

	res, err := s.orch.Handle(ctx, req.Query, req.Complexity)
	if err != nil {
		return nil, err
	}
	s.cache.Store(ctx, req.Query, res.Response)

	return &types.QueryResponse{
		Response:  res.Response,
		TierUsed:  res.TierUsed,
		LatencyMS: time.Since(start).Milliseconds(),
		Attempts:  toAPIAttempts(res.Attempts),
	}, nil
}

// SubmitTask creates a task and starts it in the background.
func (s *Service) SubmitTask(ctx context.Context, req types.TaskRequest) (*types.Task, error) {
	t, err := s.tasks.Create(ctx, req.Description, req.Steps)
	if err != nil {
		return nil, err
	}
	go s.runTask(t.ID)
	return t, nil
}

// GetTask returns a task with its steps.
func (s *Service) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ListTasks returns recent tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, limit int) ([]types.Task, error) {
	return s.tasks.List(ctx, limit)
}

// InterruptTask requests a pause at the next step boundary.
func (s *Service) InterruptTask(ctx context.Context, id string) error {
	return s.tasks.Interrupt(id)
}

// ResumeTask validates that the task is paused and continues it in the
// background.
func (s *Service) ResumeTask(ctx context.Context, id string) error {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != types.TaskPaused {
		return task.ErrNotPaused(id, t.Status)
	}
	go s.runTask(id)
	return nil
}

// runTask drives a task under the service's base context so a daemon
// shutdown pauses it at the next step boundary.
func (s *Service) runTask(id string) {
	if err := s.tasks.Run(s.baseCtx, id); err != nil {
		s.log.Warn().Str("task_id", id).Err(err).Msg("event=task_run_error")
	}
}

// Status aggregates the daemon's observable state.
func (s *Service) Status(ctx context.Context) types.StatusResponse {
	return types.StatusResponse{
		Overall:   s.monitor.Overall(),
		Tiers:     s.orch.Catalog().All(),
		Instances: s.orch.Snapshot(),
		Perf:      s.orch.Perf().Snapshot(),
		Cache:     s.cache.Stats(ctx),
		Checks:    s.monitor.Current(),
		UptimeSec: int64(time.Since(s.started).Seconds()),
	}
}

// Checks returns the most recent probe round.
func (s *Service) Checks(ctx context.Context) []types.CheckResult {
	return s.monitor.Current()
}

// Incidents lists recent incidents from the ledger, newest first.
func (s *Service) Incidents(ctx context.Context, limit int) ([]types.Incident, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.RecentIncidents(ctx, limit)
}

// Ready reports whether the daemon should accept traffic.
func (s *Service) Ready() bool {
	return s.monitor.Overall() != types.StatusCritical
}

// stepExecutor runs task steps through the serving path, so steps benefit
// from the cache and the fallback chain. An exhausted chain is transient:
// the step is retried up to the manager's cap.
type stepExecutor struct {
	svc *Service
}

func (e *stepExecutor) ExecuteStep(ctx context.Context, t *types.Task, step *types.Step) (string, error) {
	resp, err := e.svc.HandleQuery(ctx, types.QueryRequest{
		Query:      step.Description,
		Complexity: taskStepComplexity,
	})
	if err != nil {
		if orchestrator.IsBackendUnavailable(err) {
			return "", &task.RetryableError{Err: err}
		}
		return "", err
	}
	return resp.Response, nil
}

func toAPIAttempts(in []orchestrator.Attempt) []types.Attempt {
	out := make([]types.Attempt, 0, len(in))
	for _, a := range in {
		out = append(out, types.Attempt{
			TierID:    a.TierID,
			OK:        a.OK,
			Reason:    a.Reason,
			LatencyMS: a.Latency.Milliseconds(),
		})
	}
	return out
}
