// Package docker runs the pricing engine inside a container, one container
// per sample.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"

	"github.com/signalnine/greeksweep/internal/engine"
)

const labelKey = "greeksweep"

// Invoker runs Binary from Image with the sample's arguments.
type Invoker struct {
	Image       string
	Binary      string
	Timeout     time.Duration
	Env         []string
	CPULimit    float64
	MemoryLimit int64

	mu  sync.Mutex
	cli *client.Client
}

// Command returns the container command for s.
func (d *Invoker) Command(s engine.Sample) []string {
	return append([]string{d.Binary}, s.Args()...)
}

// Check runs Binary once without arguments in a throwaway container. It
// fails when the daemon is unreachable, the image is missing, or the binary
// cannot be executed inside the image. Any other exit status passes: the
// engine rejects an empty argument list on its own.
func (d *Invoker) Check(ctx context.Context) error {
	if d.Image == "" || d.Binary == "" {
		return fmt.Errorf("%w: docker invoker needs an image and a binary", engine.ErrUnavailable)
	}
	cli, err := d.client()
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	id, err := d.create(ctx, cli, []string{d.Binary})
	if err != nil {
		return fmt.Errorf("%w: image %s: %v", engine.ErrUnavailable, d.Image, err)
	}
	defer cli.ContainerRemove(context.Background(), id, client.ContainerRemoveOptions{Force: true})

	if _, err := cli.ContainerStart(ctx, id, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("%w: starting %s in %s: %v", engine.ErrUnavailable, d.Binary, d.Image, err)
	}
	code, timedOut, err := d.wait(ctx, cli, id)
	switch {
	case timedOut:
		return nil
	case err != nil:
		return fmt.Errorf("%w: probing %s in %s: %v", engine.ErrUnavailable, d.Binary, d.Image, err)
	case unlaunchable(code):
		return fmt.Errorf("%w: %s in %s exited with status %d", engine.ErrUnavailable, d.Binary, d.Image, code)
	}
	return nil
}

func (d *Invoker) Invoke(ctx context.Context, s engine.Sample) (*engine.Result, error) {
	res := &engine.Result{Sample: s}
	cli, err := d.client()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}

	id, err := d.create(ctx, cli, d.Command(s))
	if err != nil {
		if cerrdefs.IsNotFound(err) || cerrdefs.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: creating container: %v", engine.ErrUnavailable, err)
		}
		res.Err = fmt.Errorf("creating container: %w", err)
		res.ExitCode = -1
		return res, nil
	}
	defer func() {
		cli.ContainerRemove(context.Background(), id, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, id, client.ContainerStartOptions{}); err != nil {
		if startFailure(err) {
			return nil, fmt.Errorf("%w: starting %s: %v", engine.ErrUnavailable, d.Binary, err)
		}
		res.Err = fmt.Errorf("starting container: %w", err)
		res.ExitCode = -1
		return res, nil
	}

	code, timedOut, err := d.wait(ctx, cli, id)
	res.Duration = time.Since(start)
	d.captureLogs(cli, id, res)
	switch {
	case ctx.Err() != nil:
		res.Err = ctx.Err()
		res.ExitCode = -1
	case timedOut:
		res.TimedOut = true
		res.ExitCode = 124
	case err != nil:
		res.Err = fmt.Errorf("waiting for container: %w", err)
		res.ExitCode = -1
	case unlaunchable(code):
		return nil, fmt.Errorf("%w: %s exited with status %d", engine.ErrUnavailable, d.Binary, code)
	default:
		res.ExitCode = code
	}
	return res, nil
}

// wait blocks until the container stops or the invocation timeout passes,
// killing it in the latter case.
func (d *Invoker) wait(ctx context.Context, cli *client.Client, id string) (code int, timedOut bool, err error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = engine.DefaultTimeout
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, id, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				continue
			}
			cli.ContainerKill(context.Background(), id, client.ContainerKillOptions{Signal: "SIGKILL"})
			if ctx.Err() == nil && timeoutCtx.Err() != nil {
				return -1, true, nil
			}
			return -1, false, err
		case status := <-waitResult.Result:
			return int(status.StatusCode), false, nil
		}
	}
}

// unlaunchable reports the statuses runtimes use for a command that could
// not be executed (126) or was not found (127).
func unlaunchable(code int) bool { return code == 126 || code == 127 }

// startFailure reports a ContainerStart error caused by the command itself
// rather than by the daemon.
func startFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"executable file not found", "no such file or directory", "permission denied", "exec format error"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Close releases the docker client.
func (d *Invoker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli == nil {
		return nil
	}
	err := d.cli.Close()
	d.cli = nil
	return err
}

func (d *Invoker) client() (*client.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli != nil {
		return d.cli, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	d.cli = cli
	return cli, nil
}

func (d *Invoker) create(ctx context.Context, cli *client.Client, cmd []string) (string, error) {
	initTrue := true
	hostCfg := &container.HostConfig{Init: &initTrue}
	if d.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(d.CPULimit * 1e9)
	}
	if d.MemoryLimit > 0 {
		hostCfg.Memory = d.MemoryLimit
	}
	resp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  d.Image,
			Cmd:    cmd,
			Env:    d.Env,
			Labels: map[string]string{labelKey: "true"},
		},
		HostConfig: hostCfg,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *Invoker) captureLogs(cli *client.Client, id string, res *engine.Result) {
	logReader, err := cli.ContainerLogs(context.Background(), id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil || logReader == nil {
		return
	}
	defer logReader.Close()
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logReader); err != nil && res.Err == nil && !res.TimedOut {
		res.Err = fmt.Errorf("reading container logs: %w", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
}
