// Package session keeps the signed-in family's state in one place. Auth
// events and refresh requests are funnelled into a single loop, which is the
// only code that changes the state.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kidnector/internal/models"
)

// eventBuffer bounds the auth events waiting for the loop
const eventBuffer = 16

// AuthSource publishes session changes
type AuthSource interface {
	Notify(ch chan<- models.AuthEvent)
	Stop(ch chan<- models.AuthEvent)
	Session() *models.Session
}

// Loader fetches the data shown for a signed-in parent
type Loader interface {
	GetFamily(ctx context.Context) (*models.Family, error)
	GetChildren(ctx context.Context) ([]models.Child, error)
}

// State is a snapshot of the signed-in family
type State struct {
	Session  *models.Session
	User     *models.User
	Family   *models.Family
	Children []models.Child
	Loading  bool
}

// SignedIn reports whether the state holds a user
func (s State) SignedIn() bool {
	return s.User != nil
}

func (s State) clone() State {
	if s.Children != nil {
		s.Children = append([]models.Child(nil), s.Children...)
	}
	return s
}

type requestKind int

const (
	requestSnapshot requestKind = iota
	requestFamily
	requestChildren
)

type request struct {
	kind  requestKind
	reply chan State
}

// Provider owns State. Run must be running for the request methods to return.
type Provider struct {
	auth   AuthSource
	loader Loader
	logger *zap.Logger

	events   chan models.AuthEvent
	requests chan request

	state State

	mu          sync.Mutex
	subscribers map[chan State]struct{}
}

// NewProvider creates a provider fed by auth and loading through loader
func NewProvider(auth AuthSource, loader Loader, logger *zap.Logger) *Provider {
	return &Provider{
		auth:        auth,
		loader:      loader,
		logger:      logger,
		events:      make(chan models.AuthEvent, eventBuffer),
		requests:    make(chan request),
		subscribers: make(map[chan State]struct{}),
	}
}

// Run serves auth events and requests until ctx is done. The current session
// is applied before anything else.
func (p *Provider) Run(ctx context.Context) error {
	p.auth.Notify(p.events)
	defer p.auth.Stop(p.events)

	p.apply(ctx, models.AuthEvent{Type: models.AuthInitialSession, Session: p.auth.Session()})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			p.apply(ctx, ev)
		case req := <-p.requests:
			switch req.kind {
			case requestFamily:
				p.reload(ctx, true, false)
			case requestChildren:
				p.reload(ctx, false, true)
			}
			req.reply <- p.state.clone()
		}
	}
}

func (p *Provider) apply(ctx context.Context, ev models.AuthEvent) {
	p.logger.Debug("auth event", zap.String("event", string(ev.Type)))

	if ev.Session == nil || ev.Session.User == nil {
		p.state = State{}
		p.publish()
		return
	}

	sameUser := p.state.User != nil && p.state.User.ID == ev.Session.User.ID
	p.state.Session = ev.Session
	p.state.User = ev.Session.User

	if ev.Type == models.AuthTokenRefreshed && sameUser && p.state.Family != nil {
		p.publish()
		return
	}
	if !sameUser {
		p.state.Family = nil
		p.state.Children = nil
	}

	p.reload(ctx, true, true)
}

// reload fetches the requested parts in parallel. A part that fails keeps
// its previous value.
func (p *Provider) reload(ctx context.Context, family, children bool) {
	if !p.state.SignedIn() {
		return
	}

	p.state.Loading = true
	p.publish()

	var (
		g         errgroup.Group
		gotFamily *models.Family
		gotKids   []models.Child
		famErr    error
		kidsErr   error
	)
	if family {
		g.Go(func() error {
			gotFamily, famErr = p.loader.GetFamily(ctx)
			if famErr != nil {
				return fmt.Errorf("failed to load family: %w", famErr)
			}
			return nil
		})
	}
	if children {
		g.Go(func() error {
			gotKids, kidsErr = p.loader.GetChildren(ctx)
			if kidsErr != nil {
				return fmt.Errorf("failed to load children: %w", kidsErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("session data load failed", zap.Error(err))
	}

	if family && famErr == nil {
		p.state.Family = gotFamily
	}
	if children && kidsErr == nil {
		p.state.Children = gotKids
	}
	p.state.Loading = false
	p.publish()
}

// publish hands the state to every subscriber, replacing any snapshot they
// have not read yet
func (p *Provider) publish() {
	snapshot := p.state.clone()

	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (p *Provider) do(ctx context.Context, kind requestKind) (State, error) {
	req := request{kind: kind, reply: make(chan State, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case s := <-req.reply:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Snapshot returns the current state
func (p *Provider) Snapshot(ctx context.Context) (State, error) {
	return p.do(ctx, requestSnapshot)
}

// RefreshFamily reloads the family row and returns the new state
func (p *Provider) RefreshFamily(ctx context.Context) (State, error) {
	return p.do(ctx, requestFamily)
}

// RefreshChildren reloads the children and returns the new state
func (p *Provider) RefreshChildren(ctx context.Context) (State, error) {
	return p.do(ctx, requestChildren)
}

// Subscribe returns a channel carrying the latest state after every change.
// Only the newest unread snapshot is kept. Call the returned func to stop.
func (p *Provider) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}
