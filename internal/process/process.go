package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/dualcam/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, etc.)
type LogParser func(line string) (level, msg string)

// ExitError reports a non-zero exit of the subprocess.
type ExitError struct {
	ID     string
	Code   int
	Killed bool
}

func (e *ExitError) Error() string {
	if e.Killed {
		return fmt.Sprintf("process %s killed after graceful shutdown timeout", e.ID)
	}
	return fmt.Sprintf("process %s exited with code %d", e.ID, e.Code)
}

// Process manages one run of a subprocess.
type Process struct {
	id              string
	args            []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu  sync.Mutex
	cmd *exec.Cmd
}

// New creates a process for args. args[0] is the executable.
func New(id string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:              id,
		args:            args,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// Args returns the command line.
func (p *Process) Args() []string {
	return p.args
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler registers a handler for every output line.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetTimeouts overrides the graceful shutdown and kill timeouts.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Run starts the subprocess and blocks until it exits. Cancelling ctx
// shuts the subprocess down gracefully. A non-zero exit is reported as
// *ExitError; a cancelled run returns the context error.
func (p *Process) Run(ctx context.Context) error {
	if len(p.args) == 0 {
		return errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "id", p.id, "error", err)
		return fmt.Errorf("start %s: %w", p.args[0], err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid)

	var outputs sync.WaitGroup
	outputs.Add(2)
	go func() {
		defer outputs.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer outputs.Done()
		p.streamOutput(stderr, "stderr")
	}()

	processDone := make(chan error, 1)
	go func() {
		outputs.Wait()
		processDone <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		p.logger.Info("Context cancelled, shutting down process", "id", p.id)
		p.sendStopSignal()
		p.waitForExit(processDone)
		return ctx.Err()
	case processErr := <-processDone:
		return p.exitError(processErr)
	}
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}
}

// waitForExit waits for the process to exit, force-killing it after the
// graceful timeout.
func (p *Process) waitForExit(processDone <-chan error) {
	select {
	case <-processDone:
		return
	case <-time.After(p.gracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	// Kill the whole group; children would otherwise keep the output pipes open.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("Failed to kill process", "id", p.id, "error", err)
	}
	select {
	case <-processDone:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
	}
}

func (p *Process) exitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{ID: p.id, Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("wait %s: %w", p.id, err)
}

// streamOutput logs each output line at the level reported by the parser.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg, "id", p.id)
		case "warning":
			logger.Warn(msg, "id", p.id)
		case "info":
			logger.Info(msg, "id", p.id)
		default:
			logger.Debug(msg, "id", p.id)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
	}
}
