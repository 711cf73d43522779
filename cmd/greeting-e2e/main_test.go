package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/greeting-e2e/client"
	"github.com/c360studio/greeting-e2e/config"
	"github.com/c360studio/greeting-e2e/mockservice"
	"github.com/c360studio/greeting-e2e/report"
	"github.com/c360studio/greeting-e2e/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMock(t *testing.T, opts ...mockservice.Option) string {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := mockservice.New(append([]mockservice.Option{mockservice.WithLogger(quiet)}, opts...)...)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// writeConfig writes a config pointing both services at serviceURL.
func writeConfig(t *testing.T, serviceURL string, extra string) (cfgPath, historyPath string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "greeting-e2e.yaml")
	historyPath = filepath.Join(dir, "history.db")

	content := fmt.Sprintf(`receiver:
  url: %s
log_api:
  url: %s
http:
  timeout: 2s
run:
  iterations: 5
dispatch:
  concurrency: 2
verify:
  page_limit: 3
  timeout: 3s
  poll_interval: 10ms
logging:
  level: error
report:
  format: text
  progress: false
  history_db: %s
%s`, serviceURL, serviceURL, historyPath, extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, historyPath
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRunPasses(t *testing.T) {
	cfgPath, historyPath := writeConfig(t, startMock(t, mockservice.WithForeignTraffic(1)), "")

	stdout, _, err := execute(t, "run", "-c", cfgPath, "--json")
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, exitCode(err))

	var result report.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, report.StatusPassed, result.Status)
	assert.Equal(t, 5, result.Counts.Verified)
	assert.Equal(t, int64(10), result.FinalOffset)
	assert.Equal(t, "local", result.Generator)

	h, err := report.OpenHistory(historyPath)
	require.NoError(t, err)
	defer h.Close()
	archived, err := h.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPassed, archived.Status)
}

func TestRootRunsByDefault(t *testing.T) {
	cfgPath, _ := writeConfig(t, startMock(t), "")

	stdout, _, err := execute(t, "-c", cfgPath, "--iterations", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "GREETING E2E SUMMARY")
	assert.Contains(t, stdout, "✓ PASSED")
	assert.Contains(t, stdout, "Verified:  2/2")
}

func TestRunTimeoutExitsOne(t *testing.T) {
	cfgPath, _ := writeConfig(t, startMock(t, mockservice.WithDropEvery(2)), "")

	stdout, _, err := execute(t, "run", "-c", cfgPath, "--timeout", "200ms", "--verbose")
	require.Error(t, err)
	assert.Equal(t, ExitFailed, exitCode(err))
	assert.True(t, verify.IsTimeout(err))
	assert.Contains(t, stdout, "✗ FAILED")
	assert.Contains(t, stdout, "Not verified:")
}

func TestRunSendFailurePolicy(t *testing.T) {
	url := startMock(t, mockservice.WithFailEvery(5))

	t.Run("tolerated", func(t *testing.T) {
		cfgPath, _ := writeConfig(t, url, "")
		_, _, err := execute(t, "run", "-c", cfgPath)
		assert.NoError(t, err)
	})

	t.Run("fail on send error", func(t *testing.T) {
		cfgPath, _ := writeConfig(t, url, "")
		stdout, _, err := execute(t, "run", "-c", cfgPath, "--fail-on-send-error", "--json")
		require.Error(t, err)
		assert.Equal(t, ExitFailed, exitCode(err))

		var result report.Result
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.Equal(t, report.StatusFailed, result.Status)
		assert.Equal(t, 1, result.Counts.SendFailures)
	})
}

func TestRunServiceDownExitsThree(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1", "")

	stdout, _, err := execute(t, "run", "-c", cfgPath, "--json")
	require.Error(t, err)
	assert.Equal(t, ExitServiceError, exitCode(err))

	var result report.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, report.StatusError, result.Status)
}

func TestRunInvalidConfigExitsTwo(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://localhost:8080", "")
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("page_limit: 3"), []byte("page_limit: 0"), 1)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o644))

	_, _, err = execute(t, "run", "-c", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))

	var validationErr *config.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "verify.page_limit", validationErr.Field)
}

func TestRunZeroIterationsFlagExitsTwo(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://localhost:8080", "")

	_, _, err := execute(t, "run", "-c", cfgPath, "--iterations", "0")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))

	var validationErr *config.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "run.iterations", validationErr.Field)
}

func TestRunUnknownFlagExitsTwo(t *testing.T) {
	_, _, err := execute(t, "run", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "greeting-e2e.yaml")

	stdout, _, err := execute(t, "init-config", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created")

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Run, cfg.Run)

	stdout, _, err = execute(t, "init-config", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")
}

func TestHistory(t *testing.T) {
	cfgPath, historyPath := writeConfig(t, startMock(t), "")

	stdout, _, err := execute(t, "run", "-c", cfgPath, "--json")
	require.NoError(t, err)
	var result report.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))

	stdout, _, err = execute(t, "history", "-c", cfgPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN ID"))
	assert.Contains(t, lines[1], result.RunID)
	assert.Contains(t, lines[1], "passed")
	assert.Contains(t, lines[1], "5/5")

	stdout, _, err = execute(t, "history", "show", result.RunID, "--db", historyPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, result.RunID)
	assert.Contains(t, stdout, "✓ PASSED")

	_, _, err = execute(t, "history", "show", "missing", "--db", historyPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailed, exitCode(err))
}

func TestHistoryNotConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting-e2e.yaml")
	require.NoError(t, config.DefaultConfig().SaveToFile(path))

	_, _, err := execute(t, "history", "-c", path)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestHistoryEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", stdout)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "greeting-e2e version 0.1.0 (build: dev)\n", stdout)
}

func TestClassifyRunError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", &verify.TimeoutError{Budget: time.Second, Offset: 3, Outstanding: []string{"M1"}}, ExitFailed},
		{"invalid params", fmt.Errorf("%w: page limit", verify.ErrInvalidParams), ExitConfigError},
		{"config", &config.ValidationError{Field: "run.iterations", Message: "bad"}, ExitConfigError},
		{"transport", fmt.Errorf("discover offset: %w", &client.TransportError{Op: "get last log entry"}), ExitServiceError},
		{"http", &client.HTTPError{Op: "send greeting", StatusCode: 500}, ExitServiceError},
		{"cancelled", fmt.Errorf("send messages: %w", context.Canceled), ExitFailed},
		{"other", errors.New("boom"), ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRunError(tt.err)
			assert.Equal(t, tt.want, exitCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitServiceError, exitCode(fmt.Errorf("wrapped: %w", newExitError(ExitServiceError, "down"))))
	assert.Equal(t, ExitConfigError, exitCode(errors.New("unknown flag")))

	err := wrapExitError(ExitFailed, "verification failed", errors.New("timeout"))
	assert.Equal(t, "verification failed: timeout", err.Error())
}
