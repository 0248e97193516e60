package usagelog

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/usagestats/usagestats/logger"
)

// CommandRunner runs an external command to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Syncer mirrors the remote log directory into the local log root over rsync.
type Syncer struct {
	Login     string
	Port      int
	RemoteDir string
	Root      string
	Dirs      []string

	run CommandRunner
	log logger.Logger
}

func NewSyncer(login string, port int, remoteDir, root string, dirs []string, log logger.Logger) *Syncer {
	return &Syncer{
		Login:     login,
		Port:      port,
		RemoteDir: remoteDir,
		Root:      root,
		Dirs:      dirs,
		run:       execRunner,
		log:       log,
	}
}

// WithRunner replaces the command runner.
func (s *Syncer) WithRunner(run CommandRunner) *Syncer {
	s.run = run
	return s
}

// Args returns the rsync argument list.
func (s *Syncer) Args() []string {
	return []string{
		"-Pavzrh",
		"-e", fmt.Sprintf("ssh -p %d", s.Port),
		fmt.Sprintf("%s:%s", s.Login, s.RemoteDir),
		s.Root,
	}
}

// Sync creates the log directories and, unless cached, fetches new logs.
func (s *Syncer) Sync(ctx context.Context, cached bool) error {
	for _, dir := range s.Dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	if cached {
		s.log.Debug("using cached logs", map[string]interface{}{"root": s.Root})
		return nil
	}
	if s.Login == "" {
		return fmt.Errorf("rsync: no ssh login configured")
	}

	args := s.Args()
	s.log.Info("fetching logs", map[string]interface{}{"command": "rsync " + strings.Join(args, " ")})
	out, err := s.run(ctx, "rsync", args...)
	if err != nil {
		return fmt.Errorf("rsync: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
