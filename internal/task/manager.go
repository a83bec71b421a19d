package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Executor runs one step of a task. Returning a *RetryableError makes the
// manager retry the step; any other error fails the task.
type Executor interface {
	ExecuteStep(ctx context.Context, t *types.Task, step *types.Step) (string, error)
}

type runState struct {
	interrupt atomic.Bool
}

// Manager creates, runs, interrupts and resumes tasks against a Store.
type Manager struct {
	store    *Store
	exec     Executor
	retryCap int
	logger   zerolog.Logger

	mu     sync.Mutex
	active map[string]*runState
}

// NewManager wires a Manager. retryCap is the number of retries granted to a
// step that fails with a RetryableError.
func NewManager(store *Store, exec Executor, retryCap int, logger zerolog.Logger) *Manager {
	if retryCap < 0 {
		retryCap = 0
	}
	return &Manager{
		store:    store,
		exec:     exec,
		retryCap: retryCap,
		logger:   logger,
		active:   make(map[string]*runState),
	}
}

// Create persists a new pending task with one pending step per description.
func (m *Manager) Create(ctx context.Context, description string, steps []string) (*types.Task, error) {
	now := time.Now()
	t := &types.Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      types.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, s := range steps {
		t.Steps = append(t.Steps, types.Step{
			ID:          uuid.NewString(),
			Description: s,
			Status:      types.StepPending,
		})
	}
	if err := m.store.Save(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Info().Str("task_id", t.ID).Int("steps", len(t.Steps)).Msg("event=task_created")
	return t, nil
}

// Get loads a task with its steps.
func (m *Manager) Get(ctx context.Context, id string) (*types.Task, error) {
	return m.store.Load(ctx, id)
}

// List returns recent tasks, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]types.Task, error) {
	return m.store.List(ctx, limit)
}

// StepResult reports the outcome of one advanced step and the task status
// that was persisted with it.
type StepResult struct {
	StepIndex  int
	Success    bool
	Output     string
	Err        string
	DurationMS int64
	TaskStatus types.TaskStatus
}

// Run executes a pending or paused task to completion, pause, or failure.
// It is synchronous; callers wanting background execution run it in a
// goroutine. Interruption (via Interrupt or ctx cancellation) takes effect
// at the next step boundary and leaves the task paused.
func (m *Manager) Run(ctx context.Context, id string) error {
	t, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != types.TaskPending && t.Status != types.TaskPaused {
		return fmt.Errorf("task %s is %s, not runnable", id, t.Status)
	}

	rs, err := m.track(id)
	if err != nil {
		return err
	}
	defer m.untrack(id)

	t.Status = types.TaskRunning
	if err := m.save(ctx, t); err != nil {
		return err
	}
	m.logger.Info().Str("task_id", id).Int("from_step", t.CurrentStep).Msg("event=task_run")

	for t.CurrentStep < len(t.Steps) {
		if rs.interrupt.Load() || ctx.Err() != nil {
			return m.pause(ctx, t)
		}
		res, err := m.advanceStep(ctx, t)
		if err != nil {
			return err
		}
		if res.TaskStatus == types.TaskPaused || res.TaskStatus == types.TaskFailed {
			return nil
		}
	}

	if t.Status == types.TaskRunning {
		// Zero-step task: the loop never ran.
		t.Status = types.TaskCompleted
		if err := m.save(ctx, t); err != nil {
			return err
		}
	}
	m.logger.Info().Str("task_id", id).Msg("event=task_completed")
	return nil
}

// Advance executes exactly the step at the task's cursor and persists the
// outcome. A task with steps remaining is left paused so a later Advance,
// Resume, or Run continues it; the final step completes the task.
func (m *Manager) Advance(ctx context.Context, id string) (StepResult, error) {
	t, err := m.store.Load(ctx, id)
	if err != nil {
		return StepResult{}, err
	}
	if t.Status != types.TaskPending && t.Status != types.TaskPaused {
		return StepResult{}, fmt.Errorf("task %s is %s, not runnable", id, t.Status)
	}
	if _, err := m.track(id); err != nil {
		return StepResult{}, err
	}
	defer m.untrack(id)

	if t.CurrentStep >= len(t.Steps) {
		t.Status = types.TaskCompleted
		if err := m.save(ctx, t); err != nil {
			return StepResult{}, err
		}
		return StepResult{StepIndex: t.CurrentStep, Success: true, TaskStatus: t.Status}, nil
	}

	t.Status = types.TaskRunning
	if err := m.save(ctx, t); err != nil {
		return StepResult{}, err
	}
	res, err := m.advanceStep(ctx, t)
	if err != nil {
		return res, err
	}
	if t.Status == types.TaskRunning {
		if err := m.pause(ctx, t); err != nil {
			return res, err
		}
		res.TaskStatus = t.Status
	}
	m.logger.Info().Str("task_id", id).Int("step", res.StepIndex).Bool("success", res.Success).Msg("event=task_advanced")
	return res, nil
}

// advanceStep runs the step at t.CurrentStep, persisting every state change.
// Success moves the cursor (the last step also completes the task); a context
// cancellation mid-step resets the step to pending and pauses the task; any
// other failure fails the task. The returned error is a persistence error
// only — step failures are reported through the StepResult.
func (m *Manager) advanceStep(ctx context.Context, t *types.Task) (StepResult, error) {
	step := &t.Steps[t.CurrentStep]
	res := StepResult{StepIndex: t.CurrentStep}

	step.Status = types.StepRunning
	if err := m.save(ctx, t); err != nil {
		return res, err
	}

	start := time.Now()
	result, err := m.runStep(ctx, t, step)
	res.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown raced the step. Leave it pending so resume
			// re-executes it rather than recording a spurious failure.
			step.Status = types.StepPending
			if perr := m.pause(ctx, t); perr != nil {
				return res, perr
			}
			res.TaskStatus = t.Status
			return res, nil
		}
		step.Status = types.StepFailed
		step.Error = err.Error()
		t.Status = types.TaskFailed
		t.Error = fmt.Sprintf("step %d (%s): %s", t.CurrentStep, step.Description, err)
		if serr := m.save(ctx, t); serr != nil {
			return res, serr
		}
		m.logger.Warn().Str("task_id", t.ID).Int("step", res.StepIndex).Err(err).Msg("event=task_failed")
		res.Err = err.Error()
		res.TaskStatus = t.Status
		return res, nil
	}

	step.Status = types.StepCompleted
	step.Result = result
	t.CurrentStep++
	t.Result = result
	if t.CurrentStep == len(t.Steps) {
		t.Status = types.TaskCompleted
	}
	if err := m.save(ctx, t); err != nil {
		return res, err
	}
	res.Success = true
	res.Output = result
	res.TaskStatus = t.Status
	return res, nil
}

// runStep retries transient failures up to the retry cap.
func (m *Manager) runStep(ctx context.Context, t *types.Task, step *types.Step) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= m.retryCap; attempt++ {
		result, err := m.exec.ExecuteStep(ctx, t, step)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return "", err
		}
		m.logger.Debug().Str("task_id", t.ID).Str("step_id", step.ID).Int("attempt", attempt+1).Err(err).Msg("event=step_retry")
	}
	return "", lastErr
}

func (m *Manager) pause(ctx context.Context, t *types.Task) error {
	t.Status = types.TaskPaused
	if err := m.save(ctx, t); err != nil {
		return err
	}
	m.logger.Info().Str("task_id", t.ID).Int("at_step", t.CurrentStep).Msg("event=task_paused")
	return nil
}

// save persists outside the run context's cancellation: state written after
// a completed step must land even when the run is being shut down.
func (m *Manager) save(ctx context.Context, t *types.Task) error {
	t.UpdatedAt = time.Now()
	return m.store.Save(context.WithoutCancel(ctx), t)
}

// Interrupt requests a pause for a running task. The request is honored at
// the next step boundary.
func (m *Manager) Interrupt(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.active[id]
	if !ok {
		return &notRunningError{id: id}
	}
	rs.interrupt.Store(true)
	m.logger.Info().Str("task_id", id).Msg("event=task_interrupt_requested")
	return nil
}

// InterruptAll requests a pause for every running task, for shutdown.
func (m *Manager) InterruptAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rs := range m.active {
		rs.interrupt.Store(true)
		m.logger.Info().Str("task_id", id).Msg("event=task_interrupt_requested")
	}
}

// Resume continues a paused task from its current step. Resuming a task in
// any other state fails with a not-paused error.
func (m *Manager) Resume(ctx context.Context, id string) error {
	t, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != types.TaskPaused {
		return &notPausedError{id: id, status: t.Status}
	}
	return m.Run(ctx, id)
}

// RecoverInterrupted demotes tasks left running by an unclean shutdown to
// paused so they can be resumed. Called once at startup.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	ids, err := m.store.Interrupted(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		t, err := m.store.Load(ctx, id)
		if err != nil {
			return 0, err
		}
		// A step caught mid-flight re-executes on resume.
		if t.CurrentStep < len(t.Steps) && t.Steps[t.CurrentStep].Status == types.StepRunning {
			t.Steps[t.CurrentStep].Status = types.StepPending
		}
		t.Status = types.TaskPaused
		if err := m.save(ctx, t); err != nil {
			return 0, err
		}
		m.logger.Info().Str("task_id", id).Msg("event=task_recovered_as_paused")
	}
	return len(ids), nil
}

func (m *Manager) track(id string) (*runState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[id]; ok {
		return nil, fmt.Errorf("task %s is already running", id)
	}
	rs := &runState{}
	m.active[id] = rs
	return rs, nil
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}
