package main

import (
	mc_launcher "github.com/mrmelon54/mc-launcher"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"sync"
)

const barSteps = 1000

// terminalSink renders launch events with pterm: one progress bar per stage.
type terminalSink struct {
	logger *zap.Logger

	mu    sync.Mutex
	stage string
	bar   *pterm.ProgressbarPrinter
}

var _ mc_launcher.Events = (*terminalSink)(nil)

func newTerminalSink(logger *zap.Logger) *terminalSink {
	return &terminalSink{logger: logger}
}

func (t *terminalSink) Progress(fraction float64, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar == nil {
		t.startBar(t.stage)
	}
	if t.bar == nil {
		return
	}
	if label != "" {
		t.bar.UpdateTitle(t.stage + ": " + label)
	}
	if n := int(fraction*barSteps) - t.bar.Current; n > 0 {
		t.bar.Add(n)
	}
}

func (t *terminalSink) Stage(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopBar()
	t.stage = label
	if label != "" {
		pterm.Info.Println(label)
	}
}

func (t *terminalSink) startBar(title string) {
	if title == "" {
		title = "Working"
	}
	bar, err := pterm.DefaultProgressbar.WithTotal(barSteps).WithTitle(title).WithRemoveWhenDone(true).Start()
	if err != nil {
		t.logger.Debug("progress bar unavailable", zap.Error(err))
		return
	}
	t.bar = bar
}

func (t *terminalSink) stopBar() {
	if t.bar == nil {
		return
	}
	_, _ = t.bar.Stop()
	t.bar = nil
}

func (t *terminalSink) Error(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopBar()
	pterm.Error.Println(message)
}

func (t *terminalSink) ProcessStarted(pid int) {
	pterm.Success.Printfln("Game started (pid %d)", pid)
}

func (t *terminalSink) ProcessExited(code int) {
	if code == 0 {
		pterm.Info.Println("Game exited")
		return
	}
	pterm.Warning.Printfln("Game exited with code %d", code)
}

func (t *terminalSink) ProcessFinished() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopBar()
	t.stage = ""
}
