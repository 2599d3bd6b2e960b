package launcher

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-resty/resty/v2"
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/mrmelon54/mc-launcher/auth"
	"github.com/mrmelon54/mc-launcher/downloader"
	java_runtime "github.com/mrmelon54/mc-launcher/java-runtime"
	launch_args "github.com/mrmelon54/mc-launcher/launch-args"
	resolve_version "github.com/mrmelon54/mc-launcher/resolve-version"
	"github.com/mrmelon54/mc-launcher/rules"
	"go.uber.org/zap"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"
)

const (
	StageResolving   = "Resolving version"
	StageDownloading = "Downloading"
	StageStarting    = "Starting game"
)

var ErrInvalidInstance = errors.New("invalid instance")

// Supervisor runs at most one launch at a time: authentication, version
// resolution, downloads, then the game process itself.
type Supervisor struct {
	settings mc_launcher.Settings
	events   mc_launcher.Events
	logger   *zap.Logger

	Auth      *auth.Engine
	Resolver  *resolve_version.Resolver
	Fetcher   *downloader.Fetcher
	Evaluator rules.Evaluator
	// Output receives the game's stdout and stderr, nil discards it.
	Output io.Writer
	// TerminateGrace is how long the game may take to exit after the
	// terminate signal before it is killed.
	TerminateGrace time.Duration

	probeJava func(ctx context.Context, location string) (*java_runtime.Runtime, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	pid    int
}

// New wires a supervisor with its collaborators sharing one http client.
func New(client *resty.Client, settings mc_launcher.Settings, manifest resolve_version.Manifest, events mc_launcher.Events, logger *zap.Logger) *Supervisor {
	if events == nil {
		events = mc_launcher.NopEvents{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := downloader.NewFetcher(client, events, logger)
	if settings.AssetHost != "" {
		fetcher.AssetHost = settings.AssetHost
	}
	if settings.LibrariesHost != "" {
		fetcher.LibrariesHost = settings.LibrariesHost
	}
	return &Supervisor{
		settings:       settings,
		events:         events,
		logger:         logger.Named("launcher"),
		Auth:           auth.NewEngine(client, settings.ClientId, events, logger),
		Resolver:       resolve_version.NewResolver(settings.VersionsDir(), manifest, fetcher, logger),
		Fetcher:        fetcher,
		Evaluator:      fetcher.Evaluator,
		TerminateGrace: 10 * time.Second,
		probeJava:      java_runtime.Detect,
	}
}

// Launch starts the instance in the background and returns a channel that
// is closed once the launch is over. If a launch is already running it is
// stopped instead: before the game started this cancels the pending phase,
// afterwards the game is sent the terminate signal. In that case Launch
// returns false.
func (s *Supervisor) Launch(ctx context.Context, inst *mc_launcher.Instance, acc *mc_launcher.Account) (<-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.stopLocked()
		return nil, false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	go s.run(ctx, inst, acc, done)
	return done, true
}

// Stop ends the running launch, if any.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.cancel == nil {
		return
	}
	if s.pid != 0 {
		s.logger.Info("terminating game", zap.Int("pid", s.pid))
	} else {
		s.logger.Info("cancelling launch")
	}
	s.cancel()
}

// Running reports whether a launch is in progress.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Pid is the game process id, zero while no game runs.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *Supervisor) setPid(pid int) {
	s.mu.Lock()
	s.pid = pid
	s.mu.Unlock()
}

func (s *Supervisor) reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.pid = 0
	s.mu.Unlock()
}

func (s *Supervisor) run(ctx context.Context, inst *mc_launcher.Instance, acc *mc_launcher.Account, done chan struct{}) {
	defer close(done)
	defer s.events.ProcessFinished()
	defer s.reset()

	if err := s.launch(ctx, inst, acc); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			s.logger.Info("launch cancelled", zap.String("instance", inst.Name))
		default:
			s.logger.Error("launch failed", zap.String("instance", inst.Name), zap.Error(err))
			var authErr *auth.Error
			if !errors.As(err, &authErr) {
				s.events.Error(userMessage(err))
			}
		}
	}
}

func userMessage(err error) string {
	var fetchErr *downloader.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return "Failed to download " + fetchErr.Url
	case errors.Is(err, resolve_version.ErrVersionNotFound):
		return "Could not resolve version: " + err.Error()
	default:
		return err.Error()
	}
}

// Prepared is a game process ready to be started.
type Prepared struct {
	Cmd        *exec.Cmd
	NativesDir string
}

func (s *Supervisor) launch(ctx context.Context, inst *mc_launcher.Instance, acc *mc_launcher.Account) error {
	p, err := s.Prepare(ctx, inst, acc)
	if err != nil {
		return err
	}
	defer s.removeNatives(p.NativesDir)

	s.events.Stage(StageStarting)
	if err := p.Cmd.Start(); err != nil {
		s.events.Stage("")
		return fmt.Errorf("start game: %w", err)
	}
	pid := p.Cmd.Process.Pid
	s.setPid(pid)
	s.events.Stage("")
	s.events.ProcessStarted(pid)
	s.logger.Info("game started", zap.String("instance", inst.Name), zap.Int("pid", pid))

	err = p.Cmd.Wait()
	code := -1
	if p.Cmd.ProcessState != nil {
		code = p.Cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Warn("wait for game", zap.Error(err))
	}
	s.logger.Info("game exited", zap.Int("pid", pid), zap.Int("code", code))
	s.events.ProcessExited(code)
	return nil
}

func (s *Supervisor) removeNatives(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to delete natives directory", zap.String("dir", dir), zap.Error(err))
		s.events.Error("Failed to delete natives directory " + dir)
	}
}

// Prepare authenticates the account, installs the instance's version and
// builds the game command. The returned natives directory belongs to the
// caller; it is removed on failure.
func (s *Supervisor) Prepare(ctx context.Context, inst *mc_launcher.Instance, acc *mc_launcher.Account) (*Prepared, error) {
	if inst.Location == "" {
		return nil, fmt.Errorf("%w: %s has no game directory", ErrInvalidInstance, inst.Name)
	}
	if stat, err := os.Stat(inst.Location); err != nil || !stat.IsDir() {
		return nil, fmt.Errorf("%w: game directory %s does not exist", ErrInvalidInstance, inst.Location)
	}
	if inst.Version == "" {
		return nil, fmt.Errorf("%w: %s has no version", ErrInvalidInstance, inst.Name)
	}

	if err := s.Auth.Authenticate(ctx, acc); err != nil {
		return nil, err
	}

	s.events.Stage(StageResolving)
	desc, err := s.Resolver.Resolve(ctx, inst.Version)
	if err != nil {
		s.events.Stage("")
		return nil, err
	}

	if err := os.MkdirAll(s.settings.NativesDir(), 0755); err != nil {
		s.events.Stage("")
		return nil, err
	}
	nativesDir, err := os.MkdirTemp(s.settings.NativesDir(), desc.Id+"-")
	if err != nil {
		s.events.Stage("")
		return nil, err
	}
	p, err := s.prepare(ctx, inst, acc, desc, nativesDir)
	s.events.Stage("")
	if err != nil {
		s.removeNatives(nativesDir)
		return nil, err
	}
	return p, nil
}

func (s *Supervisor) prepare(ctx context.Context, inst *mc_launcher.Instance, acc *mc_launcher.Account, desc *resolve_version.Descriptor, nativesDir string) (*Prepared, error) {
	s.events.Stage(StageDownloading)
	features := launch_args.Features(s.settings)
	res, err := s.Fetcher.FetchVersion(ctx, desc, downloader.Dirs{
		Versions:  s.settings.VersionsDir(),
		Libraries: s.settings.LibrariesDir(),
		Assets:    s.settings.AssetsDir(),
		Natives:   nativesDir,
		Game:      inst.Location,
	}, features)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.checkJava(ctx, inst, desc)

	b := launch_args.NewBuilder(s.Evaluator, launch_args.Params{
		Account:        acc,
		Settings:       s.settings,
		Instance:       inst,
		VersionName:    desc.Id,
		VersionType:    desc.Type,
		Classpath:      res.Classpath,
		NativesDir:     nativesDir,
		LibrariesDir:   s.settings.LibrariesDir(),
		AssetsRoot:     res.AssetsRoot,
		AssetIndexName: res.AssetIndexName,
		GameAssets:     res.GameAssets,
	})
	argv := BuildCommand(b, desc, inst, nativesDir, res.Classpath)
	s.logger.Info("game command", zap.String("cmd", escapeCommand(argv, acc.AccessToken())))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inst.Location
	cmd.Stdout = s.Output
	cmd.Stderr = s.Output
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = s.TerminateGrace
	return &Prepared{Cmd: cmd, NativesDir: nativesDir}, nil
}

// checkJava only warns, the game may still run on an older runtime.
func (s *Supervisor) checkJava(ctx context.Context, inst *mc_launcher.Instance, desc *resolve_version.Descriptor) {
	if desc.JavaVersion == nil || desc.JavaVersion.MajorVersion == 0 || s.probeJava == nil {
		return
	}
	rt, err := s.probeJava(ctx, inst.JavaLocation)
	if err != nil {
		s.logger.Warn("failed to probe java runtime", zap.String("java", inst.JavaLocation), zap.Error(err))
		return
	}
	if !rt.Satisfies(desc.JavaVersion.MajorVersion) {
		s.logger.Warn("java runtime older than required",
			zap.String("java", rt.Location),
			zap.String("version", rt.Version),
			zap.Int("required", desc.JavaVersion.MajorVersion))
	}
}

func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}

// PruneNatives removes natives directories left behind by launches that
// never finished. Only call it while nothing is running.
func (s *Supervisor) PruneNatives() {
	entries, err := os.ReadDir(s.settings.NativesDir())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = os.RemoveAll(filepath.Join(s.settings.NativesDir(), e.Name()))
		}
	}
}
