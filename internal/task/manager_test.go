package task

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"inferd/pkg/types"
)

type funcExec func(ctx context.Context, t *types.Task, step *types.Step) (string, error)

func (f funcExec) ExecuteStep(ctx context.Context, t *types.Task, step *types.Step) (string, error) {
	return f(ctx, t, step)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreate_PersistsPendingTask(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	m := NewManager(s, funcExec(nil), 0, zerolog.Nop())

	created, err := m.Create(ctx, "set up waybar", []string{"write config", "restart panel"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskPending, got.Status)
	require.Len(t, got.Steps, 2)
	require.Equal(t, types.StepPending, got.Steps[0].Status)
	require.Equal(t, 0, got.CurrentStep)
}

func TestRun_CompletesAllSteps(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var mu sync.Mutex
	var executed []string
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		mu.Lock()
		executed = append(executed, step.Description)
		mu.Unlock()
		return "did: " + step.Description, nil
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)
	require.Equal(t, 3, got.CurrentStep)
	require.Equal(t, "did: c", got.Result)
	require.Equal(t, []string{"a", "b", "c"}, executed)
	for _, st := range got.Steps {
		require.Equal(t, types.StepCompleted, st.Status)
	}
}

func TestRun_RetryableStepEventuallySucceeds(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	attempts := 0
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &RetryableError{Err: errors.New("backend busy")}
		}
		return "ok", nil
	}), 2, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"flaky"})
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)
	require.Equal(t, 3, attempts)
}

func TestRun_RetryCapExhaustedFailsTask(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	attempts := 0
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		attempts++
		return "", &RetryableError{Err: errors.New("backend busy")}
	}), 2, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"flaky", "never reached"})
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskFailed, got.Status)
	require.Equal(t, 3, attempts) // 1 + 2 retries
	require.Equal(t, types.StepFailed, got.Steps[0].Status)
	require.Equal(t, types.StepPending, got.Steps[1].Status)
	require.Contains(t, got.Error, "flaky")
}

func TestRun_NonRetryableFailsImmediately(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	attempts := 0
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		attempts++
		return "", errors.New("hard failure")
	}), 5, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"doomed"})
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskFailed, got.Status)
	require.Equal(t, 1, attempts)
}

func TestInterrupt_PausesAtStepBoundaryAndResumes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	stepStarted := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var executed []string
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		mu.Lock()
		executed = append(executed, step.Description)
		mu.Unlock()
		if step.Description == "first" {
			close(stepStarted)
			<-release
		}
		return "ok", nil
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"first", "second", "third"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, created.ID) }()

	<-stepStarted
	require.NoError(t, m.Interrupt(created.ID))
	close(release)
	require.NoError(t, <-done)

	// First step finished, then the run paused before the second.
	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskPaused, got.Status)
	require.Equal(t, 1, got.CurrentStep)
	require.Equal(t, types.StepCompleted, got.Steps[0].Status)
	require.Equal(t, types.StepPending, got.Steps[1].Status)

	require.NoError(t, m.Resume(ctx, created.ID))
	got, err = m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second", "third"}, executed)
}

func TestAdvance_OneStepAtATime(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var mu sync.Mutex
	var executed []string
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		mu.Lock()
		executed = append(executed, step.Description)
		mu.Unlock()
		return "did: " + step.Description, nil
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"a", "b", "c"})
	require.NoError(t, err)

	res, err := m.Advance(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 0, res.StepIndex)
	require.Equal(t, "did: a", res.Output)
	require.Equal(t, types.TaskPaused, res.TaskStatus)

	res, err = m.Advance(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.StepIndex)

	// Two advances, two steps: the task is resumable, not terminal.
	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskPaused, got.Status)
	require.Equal(t, 2, got.CurrentStep)
	require.Equal(t, types.StepCompleted, got.Steps[0].Status)
	require.Equal(t, types.StepCompleted, got.Steps[1].Status)
	require.Equal(t, types.StepPending, got.Steps[2].Status)
	require.Equal(t, []string{"a", "b"}, executed)

	// The final step completes the task.
	res, err = m.Advance(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, res.TaskStatus)
	got, err = m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)
}

func TestAdvance_StepFailureFailsTask(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		return "", errors.New("hard failure")
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"doomed", "never reached"})
	require.NoError(t, err)

	res, err := m.Advance(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Contains(t, res.Err, "hard failure")
	require.Equal(t, types.TaskFailed, res.TaskStatus)

	// A failed task is terminal; advancing again is rejected.
	_, err = m.Advance(ctx, created.ID)
	require.Error(t, err)
}

func TestAdvance_InterleavesWithRun(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var mu sync.Mutex
	var executed []string
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		mu.Lock()
		executed = append(executed, step.Description)
		mu.Unlock()
		return "ok", nil
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"a", "b", "c"})
	require.NoError(t, err)

	_, err = m.Advance(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)
	require.Equal(t, []string{"a", "b", "c"}, executed)
}

func TestRun_ContextCancelPauses(t *testing.T) {
	s := testStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	stepStarted := make(chan struct{})
	release := make(chan struct{})
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		if step.Description == "a" {
			close(stepStarted)
			<-release
		}
		return "ok", nil
	}), 0, zerolog.Nop())

	created, err := m.Create(ctx, "task", []string{"a", "b"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, created.ID) }()
	<-stepStarted
	cancel()
	close(release)
	require.NoError(t, <-done)

	// Step a completed and was persisted; the boundary check paused before b.
	got, err := m.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskPaused, got.Status)
	require.Equal(t, 1, got.CurrentStep)
	require.Equal(t, types.StepCompleted, got.Steps[0].Status)
}

func TestRecoverInterrupted_ResumesAtNextStep(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// Simulate a task killed mid-run: step 0 done, step 1 caught in flight.
	now := time.Now()
	killed := &types.Task{
		ID:          "killed-task",
		Description: "task",
		Status:      types.TaskRunning,
		CurrentStep: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Steps: []types.Step{
			{ID: "s0", Description: "a", Status: types.StepCompleted, Result: "done a"},
			{ID: "s1", Description: "b", Status: types.StepRunning},
			{ID: "s2", Description: "c", Status: types.StepPending},
		},
	}
	require.NoError(t, s.Save(ctx, killed))

	var mu sync.Mutex
	var executed []string
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		mu.Lock()
		executed = append(executed, step.Description)
		mu.Unlock()
		return "done " + step.Description, nil
	}), 0, zerolog.Nop())

	n, err := m.RecoverInterrupted(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := m.Get(ctx, "killed-task")
	require.NoError(t, err)
	require.Equal(t, types.TaskPaused, got.Status)

	require.NoError(t, m.Resume(ctx, "killed-task"))
	got, err = m.Get(ctx, "killed-task")
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)

	// Only the unfinished steps ran again.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"b", "c"}, executed)
}

func TestErrors_Predicates(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		return "ok", nil
	}), 0, zerolog.Nop())

	_, err := m.Get(ctx, "nope")
	require.True(t, IsNotFound(err))

	require.True(t, IsNotRunning(m.Interrupt("nope")))

	created, err := m.Create(ctx, "task", []string{"a"})
	require.NoError(t, err)
	err = m.Resume(ctx, created.ID)
	require.True(t, IsNotPaused(err), "resume of a pending task: %v", err)

	require.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &RetryableError{Err: errors.New("x")})))
	require.False(t, IsRetryable(errors.New("x")))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	s, err := OpenStore(path)
	require.NoError(t, err)
	m := NewManager(s, funcExec(func(ctx context.Context, tk *types.Task, step *types.Step) (string, error) {
		return "ok", nil
	}), 0, zerolog.Nop())
	created, err := m.Create(ctx, "task", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, created.ID))
	require.NoError(t, s.Close())

	s2, err := OpenStore(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.Status)
	require.NoError(t, s2.IntegrityCheck())
}
