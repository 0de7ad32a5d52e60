package notify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/storage"
)

// PermissionState mirrors the three states of an origin notification permission.
type PermissionState string

const (
	PermissionDefault PermissionState = "default" // not decided yet
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// ParsePermission returns PermissionDefault for anything unrecognized.
func ParsePermission(s string) PermissionState {
	switch PermissionState(strings.ToLower(strings.TrimSpace(s))) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	}
	return PermissionDefault
}

// Prompter asks the user whether notifications may be shown.
type Prompter interface {
	Prompt(ctx context.Context) (bool, error)
}

// AutoPrompter answers without asking; for headless deployments and tests.
type AutoPrompter struct {
	Grant bool
}

func (a AutoPrompter) Prompt(context.Context) (bool, error) { return a.Grant, nil }

// TerminalPrompter asks on a terminal and reads a y/n answer.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) Prompt(ctx context.Context) (bool, error) {
	fmt.Fprint(p.Out, "Allow desktop notifications for support chat replies? [y/N]: ")
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Permission stores the notification decision next to the chat collection so
// every process on the same storage origin shares it.
type Permission struct {
	backend  storage.Backend
	key      string
	initial  PermissionState
	prompter Prompter
	logger   *zap.Logger

	mu sync.Mutex
}

// PermissionKey derives the storage key for the chat collection key.
func PermissionKey(storageKey string) string {
	return storageKey + "_notify_permission"
}

// NewPermission returns a Permission reading and writing key. initial is the
// state reported while nothing has been persisted.
func NewPermission(backend storage.Backend, key string, initial PermissionState, prompter Prompter, logger *zap.Logger) *Permission {
	if logger == nil {
		logger = zap.NewNop()
	}
	if initial == "" {
		initial = PermissionDefault
	}
	return &Permission{backend: backend, key: key, initial: initial, prompter: prompter, logger: logger}
}

// State returns the persisted decision, or the initial state when none exists.
func (p *Permission) State(ctx context.Context) PermissionState {
	raw, err := p.backend.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		return p.initial
	}
	if err != nil {
		p.logger.Warn("failed to read notification permission", zap.Error(err))
		return p.initial
	}
	return ParsePermission(string(raw))
}

// Granted reports whether visual notifications may be shown.
func (p *Permission) Granted(ctx context.Context) bool {
	return p.State(ctx) == PermissionGranted
}

// Request negotiates permission. Granted returns true and denied returns false,
// both without prompting. Only an undecided state prompts, and the answer is
// persisted so the user is never asked again.
func (p *Permission) Request(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State(ctx) {
	case PermissionGranted:
		return true, nil
	case PermissionDenied:
		return false, nil
	}

	if p.prompter == nil {
		return false, nil
	}
	ok, err := p.prompter.Prompt(ctx)
	if err != nil {
		// an interrupted prompt leaves the decision open
		return false, fmt.Errorf("notification prompt: %w", err)
	}

	state := PermissionDenied
	if ok {
		state = PermissionGranted
	}
	if err := p.backend.Set(ctx, p.key, []byte(state)); err != nil {
		return ok, fmt.Errorf("persist notification permission: %w", err)
	}
	p.logger.Info("notification permission decided", zap.String("state", string(state)))
	return ok, nil
}

// Reset forgets the decision so the next Request prompts again. Admin only.
func (p *Permission) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend.Delete(ctx, p.key)
}
