// Copyright 2024 The wmgr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exec

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
)

func TestRun(t *testing.T) {
	res, err := Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"},
		Config{InheritEnv: true})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 3"},
		Config{InheritEnv: true})
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRunEmptyArgv(t *testing.T) {
	_, err := Run(context.Background(), nil, Config{})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidParam, err.(*errors.Error).Kind)
}

func TestRunSpawnFailure(t *testing.T) {
	_, err := Run(context.Background(), []string{"/no/such/binary"}, Config{})
	require.Error(t, err)
	assert.Equal(t, errors.Exec, err.(*errors.Error).Kind)
}

func TestRunDir(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), []string{"pwd"},
		Config{Dir: dir, InheritEnv: true})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, dir)
}

func TestRunEnv(t *testing.T) {
	res, err := Run(context.Background(), []string{"sh", "-c", "echo $WMGR_TEST_VAR"},
		Config{Env: []string{"WMGR_TEST_VAR=hello"}, InheritEnv: true})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), []string{"sleep", "10"},
		Config{Timeout: 100 * time.Millisecond, InheritEnv: true})
	require.Error(t, err)
	assert.Equal(t, errors.Timeout, err.(*errors.Error).Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := Run(ctx, []string{"sleep", "10"}, Config{InheritEnv: true})
	require.Error(t, err)
	assert.Equal(t, errors.Canceled, err.(*errors.Error).Kind)
}

func TestRunParallel(t *testing.T) {
	var tasks []Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, Task{
			ID:     fmt.Sprintf("task-%d", i),
			Argv:   []string{"sh", "-c", fmt.Sprintf("echo %d", i)},
			Config: Config{InheritEnv: true},
		})
	}
	res, err := RunParallel(context.Background(), tasks, ParallelConfig{MaxConcurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, 8, res.SuccessCount)
	assert.Equal(t, 0, res.FailureCount)
	require.Len(t, res.Results, 8)
	assert.Equal(t, "5\n", res.Results["task-5"].Result.Stdout)
}

func TestRunParallelFailureIsolation(t *testing.T) {
	tasks := []Task{
		{ID: "ok", Argv: []string{"true"}, Config: Config{InheritEnv: true}},
		{ID: "bad-exit", Argv: []string{"false"}, Config: Config{InheritEnv: true}},
		{ID: "no-binary", Argv: []string{"/no/such/binary"}},
		{ID: "slow", Argv: []string{"sleep", "10"},
			Config: Config{Timeout: 100 * time.Millisecond, InheritEnv: true}},
	}
	res, err := RunParallel(context.Background(), tasks, ParallelConfig{MaxConcurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 3, res.FailureCount)
	assert.Equal(t, len(tasks), res.SuccessCount+res.FailureCount)

	assert.True(t, res.Results["ok"].Success())
	require.NotNil(t, res.Results["bad-exit"].Result)
	assert.Equal(t, 1, res.Results["bad-exit"].Result.ExitCode)
	assert.Error(t, res.Results["no-binary"].Err)
	require.Error(t, res.Results["slow"].Err)
	assert.Equal(t, errors.Timeout, res.Results["slow"].Err.(*errors.Error).Kind)
}

func TestRunParallelBoundsConcurrency(t *testing.T) {
	dir := t.TempDir()
	// Each task writes a start and an end marker; with a bound of 1 the
	// pairs never interleave.
	var tasks []Task
	for i := 0; i < 4; i++ {
		tasks = append(tasks, Task{
			ID: fmt.Sprintf("t%d", i),
			Argv: []string{"sh", "-c",
				fmt.Sprintf("echo start-%d >> log; sleep 0.05; echo end-%d >> log", i, i)},
			Config: Config{Dir: dir, InheritEnv: true},
		})
	}
	res, err := RunParallel(context.Background(), tasks, ParallelConfig{MaxConcurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.SuccessCount)

	out, readErr := Run(context.Background(), []string{"cat", "log"},
		Config{Dir: dir, InheritEnv: true})
	require.NoError(t, readErr)
	// With one worker each start is immediately followed by its end.
	lines := out.Stdout
	for i := 0; i < 4; i++ {
		assert.Contains(t, lines, fmt.Sprintf("start-%d\nend-%d", i, i))
	}
}

func TestRunParallelDuplicateID(t *testing.T) {
	tasks := []Task{
		{ID: "x", Argv: []string{"true"}},
		{ID: "x", Argv: []string{"true"}},
	}
	_, err := RunParallel(context.Background(), tasks, ParallelConfig{})
	require.Error(t, err)
}
