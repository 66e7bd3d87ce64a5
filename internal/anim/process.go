package anim

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// killWait bounds how long a kill waits for the child to exit.
const killWait = time.Second

// child is the instance-facing view of a running animation process.
// The real implementation wraps an exec.Cmd; tests substitute a fake.
type child interface {
	writeLine(line string)
	drain() []string
	kill()
	closeWait(timeout time.Duration)
}

// spawnFunc starts a child process for the executable at path.
type spawnFunc func(path string, log *logging.Logger) (child, error)

// process owns one running animation executable: its stdin pipe and a
// reader goroutine that buffers stdout lines until the owning
// instance drains them.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   *logging.Logger

	mu    sync.Mutex
	lines []string

	readerDone chan struct{} // closed when the stdout reader finishes
	done       chan struct{} // closed once Wait has reaped the child
	reapOnce   sync.Once
}

// startProcess spawns the executable in run mode and begins reading
// its output.
func startProcess(path string, log *logging.Logger) (child, error) {
	cmd := exec.Command(path, "--ckb-run")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{
		cmd:        cmd,
		stdin:      stdin,
		log:        log,
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.readOutput(stdout)
	return p, nil
}

// readOutput buffers stdout lines until the owner drains them. A
// closed pipe is recorded as a final "end run" so a child that dies
// without announcing termination still stops its instance.
func (p *process) readOutput(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		p.mu.Lock()
		p.lines = append(p.lines, line)
		p.mu.Unlock()
	}
	p.mu.Lock()
	p.lines = append(p.lines, "end run")
	p.mu.Unlock()
	close(p.readerDone)
}

// writeLine sends one protocol line to the child. Write failures are
// absorbed; a dead child surfaces as an "end run" from the reader.
func (p *process) writeLine(line string) {
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		p.log.Debug("animation write failed", zap.Error(err))
	}
}

// drain takes all buffered output lines.
func (p *process) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines := p.lines
	p.lines = nil
	return lines
}

// kill signals the child and detaches a bounded wait so the caller
// never blocks on a stubborn process.
func (p *process) kill() {
	p.signal()
	go p.reap(killWait)
}

// closeWait signals the child and waits up to timeout for it to exit.
// Used on instance destruction.
func (p *process) closeWait(timeout time.Duration) {
	p.signal()
	p.reap(timeout)
}

func (p *process) signal() {
	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

// reap waits for the child to exit, abandoning the wait after the
// given bound. The process has already been signaled by then.
func (p *process) reap(timeout time.Duration) {
	p.reapOnce.Do(func() {
		go func() {
			// Wait must not race the stdout reader on the pipe.
			<-p.readerDone
			p.cmd.Wait()
			close(p.done)
		}()
	})
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.log.Debug("animation process did not exit in time",
			zap.String("path", p.cmd.Path))
	}
}
