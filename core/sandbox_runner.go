package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/image"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// Severity ranks per-test verdicts so aggregation is a single max-fold,
// per spec's priority TLE > MLE > RE > WA > AC.
type Severity int

const (
	sevAC Severity = iota
	sevWA
	sevRE
	sevMLE
	sevTLE
)

func severityOf(v Verdict) Severity {
	switch v {
	case VerdictTLE:
		return sevTLE
	case VerdictMLE:
		return sevMLE
	case VerdictRE:
		return sevRE
	case VerdictWA:
		return sevWA
	default:
		return sevAC
	}
}

// PerTestResult is one test case's outcome.
type PerTestResult struct {
	Status   Verdict
	ElapsedS float64
	Output   string
	Message  string
}

// RunResult is the full sandbox outcome for a submission, per spec §4.2.
type RunResult struct {
	Overall  Verdict
	MaxTime  float64
	PerTest  []PerTestResult
}

// SandboxRunner executes untrusted code against a set of test cases.
type SandboxRunner interface {
	Run(ctx context.Context, code, languageKey string, testCases []TestCase, timeLimitS float64, memoryLimitMiB float64) RunResult
	PrePullImages(ctx context.Context, images []string)
}

// DockerSandboxRunner implements SandboxRunner with the moby Docker client,
// one container per test case, per spec §4.2's ten-step procedure.
type DockerSandboxRunner struct {
	cli        *client.Client
	registry   *LanguageRegistry
	scratchDir string
}

// NewDockerSandboxRunner connects to the local Docker daemon (DOCKER_HOST env,
// or the default socket) and negotiates the API version.
func NewDockerSandboxRunner(registry *LanguageRegistry, scratchDir string) (*DockerSandboxRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	abs, err := filepath.Abs(scratchDir)
	if err != nil {
		return nil, err
	}
	return &DockerSandboxRunner{cli: cli, registry: registry, scratchDir: abs}, nil
}

// PrePullImages pulls every required image best-effort at startup; failures
// are logged, not fatal — a submission referring to a missing image later
// surfaces as RE through the per-test classifier.
func (r *DockerSandboxRunner) PrePullImages(ctx context.Context, images []string) {
	for _, img := range images {
		rc, err := r.cli.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			log.Printf("sandbox: pre-pull image %s failed: %v", img, err)
			continue
		}
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
		log.Printf("sandbox: pre-pulled image %s", img)
	}
}

// Run executes every test case in order and folds the per-test verdicts into
// an overall result, per spec §4.2.
func (r *DockerSandboxRunner) Run(ctx context.Context, code, languageKey string, testCases []TestCase, timeLimitS, memoryLimitMiB float64) RunResult {
	spec, ok := r.registry.Lookup(languageKey)
	if !ok {
		return RunResult{
			Overall: VerdictRE,
			PerTest: []PerTestResult{{Status: VerdictRE, Message: fmt.Sprintf("unsupported language %q", languageKey)}},
		}
	}

	if len(testCases) == 0 {
		return RunResult{Overall: VerdictAC, MaxTime: 0}
	}

	result := RunResult{Overall: VerdictAC}
	for _, tc := range testCases {
		pt := r.runOne(ctx, spec, code, tc, timeLimitS, memoryLimitMiB)
		result.PerTest = append(result.PerTest, pt)
		if pt.ElapsedS > result.MaxTime {
			result.MaxTime = pt.ElapsedS
		}
		if severityOf(pt.Status) > severityOf(result.Overall) {
			result.Overall = pt.Status
		}
	}
	return result
}

func (r *DockerSandboxRunner) runOne(ctx context.Context, spec LanguageSpec, code string, tc TestCase, timeLimitS, memoryLimitMiB float64) (result PerTestResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = PerTestResult{Status: VerdictRE, Message: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	scratch, err := os.MkdirTemp(r.scratchDir, "sub-*")
	if err != nil {
		return PerTestResult{Status: VerdictRE, Message: "scratch dir: " + err.Error()}
	}
	defer os.RemoveAll(scratch)

	if err := os.WriteFile(filepath.Join(scratch, spec.FileName), []byte(code), 0o644); err != nil {
		return PerTestResult{Status: VerdictRE, Message: "write source: " + err.Error()}
	}

	cmd := strings.ReplaceAll(spec.CommandTemplate, "{file}", spec.FileName)
	cmd = strings.ReplaceAll(cmd, "{input}", shellQuote(tc.Input))

	if timeLimitS <= 0 {
		timeLimitS = 0
	}
	if memoryLimitMiB <= 0 {
		memoryLimitMiB = 256
	}
	memBytes := int64(memoryLimitMiB * 1024 * 1024)

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs:      500_000_000, // 50% of one core
			Memory:        memBytes,
			MemorySwap:    memBytes, // no swap expansion
			OomKillDisable: boolPtr(false),
		},
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: scratch, Target: "/app"},
		},
		NetworkMode: "none",
	}
	containerCfg := &container.Config{
		Image:      spec.Image,
		Cmd:        []string{"sh", "-c", cmd},
		WorkingDir: "/app",
	}

	created, err := r.cli.ContainerCreate(ctx, containerCfg, hostConfig, nil, nil, "")
	if err != nil {
		return PerTestResult{Status: VerdictRE, Message: "container create: " + err.Error()}
	}
	id := created.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(removeCtx, id, container.RemoveOptions{Force: true})
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeLimitDuration(timeLimitS))
	defer cancel()

	start := time.Now()
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return PerTestResult{Status: VerdictRE, Message: "container start: " + err.Error()}
	}

	statusCh, errCh := r.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case <-statusCh:
	case <-waitCtx.Done():
		waitErr = waitCtx.Err()
	}
	elapsed := time.Since(start).Seconds()

	if waitErr != nil {
		_ = r.cli.ContainerKill(context.Background(), id, "KILL")
		return PerTestResult{Status: VerdictTLE, ElapsedS: elapsed, Message: "wait failed/timeout"}
	}

	inspect, err := r.cli.ContainerInspect(context.Background(), id)
	if err != nil {
		return PerTestResult{Status: VerdictRE, ElapsedS: elapsed, Message: "inspect: " + err.Error()}
	}

	output, _ := r.readOutput(context.Background(), id)

	status := classify(inspect.State.OOMKilled, inspect.State.ExitCode, output, tc.ExpectedOutput)
	return PerTestResult{Status: status, ElapsedS: elapsed, Output: output}
}

// classify applies spec §4.2 step 8's priority order.
func classify(oomKilled bool, exitCode int, actual, expected string) Verdict {
	if oomKilled {
		return VerdictMLE
	}
	if exitCode != 0 {
		return VerdictRE
	}
	if strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return VerdictAC
	}
	return VerdictWA
}

// readOutput demuxes the Docker multiplexed log stream: each frame is an
// 8-byte header (stream type + big-endian uint32 payload length) followed by
// the payload itself.
func (r *DockerSandboxRunner) readOutput(ctx context.Context, id string) (string, error) {
	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer logs.Close()

	var output strings.Builder
	reader := bufio.NewReader(logs)
	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(reader, header); err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return "", err
		}
		output.Write(payload)
	}
	return output.String(), nil
}

func timeLimitDuration(timeLimitS float64) time.Duration {
	if timeLimitS <= 0 {
		return 1 * time.Millisecond
	}
	return time.Duration(timeLimitS * float64(time.Second))
}

func boolPtr(b bool) *bool { return &b }

// shellQuote applies POSIX single-quote shell quoting with the same escaping
// as Python's shlex.quote: wrap in single quotes, escaping embedded quotes as
// '\'' (close quote, literal quote, reopen quote). Unlike shlex.quote, it
// quotes every string, including ones shlex.quote would leave bare.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
