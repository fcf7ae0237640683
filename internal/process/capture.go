package process

import (
	"io"

	"golang.org/x/sync/errgroup"
)

// CopyOutputs copies src's two output pipes into their respective
// destinations concurrently, returning once both pipes are closed (normally
// when the child exits). Used when the caller manages the child's stdout and
// stderr pipes directly (exec.Cmd.StdoutPipe/StderrPipe) rather than handing
// plain io.Writers to exec.Cmd, e.g. when a reader needs to observe EOF
// independently of cmd.Wait.
func CopyOutputs(stdout, stderr io.Reader, stdoutDst, stderrDst io.Writer) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdoutDst, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderrDst, stderr)
		return err
	})
	return g.Wait()
}
