package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := New()
	e.admitInterval = 20 * time.Millisecond
	t.Cleanup(e.Close)
	return e
}

func shellJob(script string, run time.Duration, admit time.Duration) Job {
	return Job{
		Args:         []string{"sh", "-c", script},
		RunTimeout:   run,
		AdmitTimeout: admit,
	}
}

func TestWaitReturnsSentinelBeforeAnyJob(t *testing.T) {
	e := newTestExecutor(t)

	start := time.Now()
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, res.Status)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)
	// Idle wait must not block regardless of the timeout.
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmitCapturesOutput(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("echo hello; echo warn >&2", 5*time.Second, 0)))
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestNonZeroExitIsACompletedRun(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("echo broken >&2; exit 3", 5*time.Second, 0)))
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)
	assert.NoError(t, res.Err())
}

func TestGenerationCountsCompletedJobs(t *testing.T) {
	e := newTestExecutor(t)
	assert.Equal(t, uint64(0), e.Generation())

	require.NoError(t, e.Submit(shellJob("true", 5*time.Second, 0)))
	_, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Generation())

	// A failed run still completes the job.
	require.NoError(t, e.Submit(shellJob("exit 1", 5*time.Second, 0)))
	_, err = e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Generation())

	// Reset clears the result, not the completion count.
	require.NoError(t, e.Reset())
	assert.Equal(t, uint64(2), e.Generation())
}

func TestMissingExecutableResolvesNotFound(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(Job{Args: []string{"definitely-not-a-real-binary-ccc"}, RunTimeout: 5 * time.Second}))
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.ErrorIs(t, res.Err(), ErrNotFound)
	assert.False(t, e.Busy())
}

func TestSubmitBusyWithZeroAdmission(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 2", 10*time.Second, 0)))
	require.True(t, e.Busy())

	err := e.Submit(shellJob("echo nope", time.Second, 0))
	assert.ErrorIs(t, err, ErrBusy)

	// Last still reflects the state preceding the in-flight job.
	assert.Equal(t, StatusNone, e.Last().Status)

	require.NoError(t, e.Cancel())
	_, err = e.Wait(5 * time.Second)
	require.NoError(t, err)
}

func TestSubmitAdmissionWaitsForSlot(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 0.1", 5*time.Second, 0)))

	// The in-flight job finishes well inside the admission budget.
	require.NoError(t, e.Submit(shellJob("echo second", 5*time.Second, 2*time.Second)))
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second\n", res.Stdout)
}

func TestSubmitAdmissionBudgetExhausted(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 2", 10*time.Second, 0)))

	err := e.Submit(shellJob("echo nope", time.Second, 100*time.Millisecond))
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, e.Cancel())
	_, err = e.Wait(5 * time.Second)
	require.NoError(t, err)
}

func TestWaitTimeoutLeavesJobRunning(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 0.3; echo done", 5*time.Second, 0)))

	_, err := e.Wait(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, e.Busy())

	// The job was not cancelled and completes on its own schedule.
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "done\n", res.Stdout)
	assert.False(t, e.Busy())
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	e := newTestExecutor(t)

	start := time.Now()
	require.NoError(t, e.Submit(shellJob("sleep 10", 100*time.Millisecond, 0)))
	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, res.Status)
	assert.ErrorIs(t, res.Err(), ErrTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLastLagsBehindInFlightJob(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("echo first", 5*time.Second, 0)))
	first, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "first\n", first.Stdout)

	require.NoError(t, e.Submit(shellJob("sleep 2", 10*time.Second, 0)))
	assert.Equal(t, "first\n", e.Last().Stdout)

	require.NoError(t, e.Cancel())
	_, err = e.Wait(5 * time.Second)
	require.NoError(t, err)
}

func TestResetWhileBusyFails(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 2", 10*time.Second, 0)))
	assert.ErrorIs(t, e.Reset(), ErrBusy)

	require.NoError(t, e.Cancel())
	_, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
}

func TestResetClearsLastResult(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("echo something", 5*time.Second, 0)))
	_, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "something\n", e.Last().Stdout)

	require.NoError(t, e.Reset())
	assert.Equal(t, StatusNone, e.Last().Status)
	assert.Empty(t, e.Last().Stdout)
}

func TestCancelAbortsInFlightJob(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("sleep 10", 30*time.Second, 0)))
	require.NoError(t, e.Cancel())

	res, err := e.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, res.Status)
	assert.ErrorIs(t, res.Err(), ErrAborted)
	assert.False(t, e.Busy())
}

func TestCancelWhileIdleBehavesAsReset(t *testing.T) {
	e := newTestExecutor(t)

	require.NoError(t, e.Submit(shellJob("echo something", 5*time.Second, 0)))
	_, err := e.Wait(5 * time.Second)
	require.NoError(t, err)

	require.NoError(t, e.Cancel())
	assert.Equal(t, StatusNone, e.Last().Status)
}
