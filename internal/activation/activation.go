// Package activation routes shortcut and icon events to a tab, making sure a
// page agent is present there before telling it to toggle.
package activation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quickask/internal/logger"
	"quickask/internal/message"
)

// ErrNoActiveTab is returned when the browser reports no focused tab.
var ErrNoActiveTab = errors.New("activation: no active tab")

// Browser is the privileged surface the activator drives.
type Browser interface {
	ActiveTab(ctx context.Context) (*message.Tab, error)
	// Probe reports whether a page agent answers in tabID. An error means the
	// question could not be answered, not that the agent is absent.
	Probe(ctx context.Context, tabID int) (bool, error)
	InjectAgent(ctx context.Context, tabID int) error
	SendMessage(ctx context.Context, tabID int, msg any) (json.RawMessage, error)
}

// Result describes what an activation did.
type Result struct {
	TabID    int  `json:"tab_id"`
	Injected bool `json:"injected"`
	Ignored  bool `json:"ignored,omitempty"`
}

// Activator runs the ensure-then-toggle sequence.
type Activator struct {
	browser Browser
	log     *slog.Logger
	locks   tabLocks
}

// New builds an Activator.
func New(browser Browser, log *slog.Logger) *Activator {
	if log == nil {
		log = logger.Discard()
	}
	return &Activator{
		browser: browser,
		log:     log,
		locks:   tabLocks{m: make(map[int]*tabLock)},
	}
}

// Activate returns once the toggle instruction has been delivered. Events for
// the same tab are serialized, so a tab is never injected twice.
func (a *Activator) Activate(ctx context.Context, ev message.ActivationEvent) (Result, error) {
	if !ev.Activates() {
		a.log.Debug("activation ignored", "source", ev.Source, "command", ev.Command)
		return Result{Ignored: true}, nil
	}
	tab, err := a.target(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	log := a.log.With("tab_id", tab.ID, "source", ev.Source)

	unlock := a.locks.lock(tab.ID)
	defer unlock()

	injected, err := a.ensureAgent(ctx, tab.ID)
	if err != nil {
		log.Warn("page agent unavailable", "err", err)
		return Result{TabID: tab.ID}, err
	}
	if _, err := a.browser.SendMessage(ctx, tab.ID, message.ShowInput()); err != nil {
		log.Warn("toggle delivery failed", "err", err, "injected", injected)
		return Result{TabID: tab.ID, Injected: injected}, fmt.Errorf("activation: send toggle to tab %d: %w", tab.ID, err)
	}
	log.Info("input toggled", "injected", injected)
	return Result{TabID: tab.ID, Injected: injected}, nil
}

// target resolves the tab fresh for every event. Icon clicks name their tab.
func (a *Activator) target(ctx context.Context, ev message.ActivationEvent) (*message.Tab, error) {
	if ev.Source == message.SourceIcon && ev.Tab != nil {
		return ev.Tab, nil
	}
	tab, err := a.browser.ActiveTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("activation: resolve active tab: %w", err)
	}
	if tab == nil {
		return nil, ErrNoActiveTab
	}
	return tab, nil
}

func (a *Activator) ensureAgent(ctx context.Context, tabID int) (bool, error) {
	alive, err := a.browser.Probe(ctx, tabID)
	if err != nil {
		return false, fmt.Errorf("activation: probe tab %d: %w", tabID, err)
	}
	if alive {
		return false, nil
	}
	if err := a.browser.InjectAgent(ctx, tabID); err != nil {
		return false, fmt.Errorf("activation: inject agent into tab %d: %w", tabID, err)
	}
	return true, nil
}

type tabLock struct {
	mu   sync.Mutex
	refs int
}

type tabLocks struct {
	mu sync.Mutex
	m  map[int]*tabLock
}

func (l *tabLocks) lock(id int) func() {
	l.mu.Lock()
	tl, ok := l.m[id]
	if !ok {
		tl = &tabLock{}
		l.m[id] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
