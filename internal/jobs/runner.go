package jobs

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Handle tracks one spawned transcription process.
type Handle struct {
	cmd       *exec.Cmd
	done      chan struct{}
	exitCode  int
	waitErr   error
	cancelled atomic.Bool
}

// StartProcess spawns binary with args and streams its combined stdout and
// stderr line by line into onLine as output becomes available. The process
// has no deadline; run times vary widely with model size and audio length,
// so termination is only ever explicit via Cancel.
func StartProcess(binary string, args []string, onLine func(string)) (*Handle, error) {
	cmd := exec.Command(binary, args...)

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	// The child holds its own copy of the write end.
	writer.Close()

	h := &Handle{cmd: cmd, done: make(chan struct{})}

	var readerDone sync.WaitGroup
	readerDone.Add(1)
	go func() {
		defer readerDone.Done()
		defer reader.Close()
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()

	go func() {
		readerDone.Wait()
		err := cmd.Wait()
		h.exitCode = cmd.ProcessState.ExitCode()
		h.waitErr = err
		close(h.done)
	}()

	return h, nil
}

// Wait blocks until the process exits and returns its exit code. It never
// terminates the process itself.
func (h *Handle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.waitErr
}

// Done returns a channel closed when the process has exited and all output
// has been delivered.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel kills the child process, best effort. The job owning this handle is
// marked failed with a cancellation marker once the process exits.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
}

// WasCancelled reports whether Cancel was invoked.
func (h *Handle) WasCancelled() bool {
	return h.cancelled.Load()
}
