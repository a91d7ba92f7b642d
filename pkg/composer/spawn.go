package composer

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
)

// Spawner runs PHP with args in dir.
type Spawner interface {
	Spawn(ctx context.Context, args []string, dir string, env []string) error
}

// outputTail is how much subprocess output is kept for error messages.
const outputTail = 4096

// ExecSpawner runs a PHP interpreter as a subprocess.
type ExecSpawner struct {
	// PHP is the interpreter path. Defaults to "php" from PATH.
	PHP string
	// Output receives the subprocess's combined stdout and stderr.
	Output io.Writer
}

// ExitError carries the tail of a failed subprocess's output.
type ExitError struct {
	Err    error
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n" + e.Output
}

func (e *ExitError) Unwrap() error { return e.Err }

// Spawn runs PHP and waits for it to exit. env is appended to the current
// process environment.
func (s ExecSpawner) Spawn(ctx context.Context, args []string, dir string, env []string) error {
	php := s.PHP
	if php == "" {
		php = "php"
	}

	var tail tailBuffer
	var out io.Writer = &tail
	if s.Output != nil {
		out = io.MultiWriter(s.Output, &tail)
	}

	cmd := exec.CommandContext(ctx, php, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return &ExitError{Err: err, Output: tail.String()}
	}
	return nil
}

// tailBuffer keeps the last outputTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > outputTail {
		p = p[len(p)-outputTail:]
	}
	if over := t.buf.Len() + len(p) - outputTail; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
