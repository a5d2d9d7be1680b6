package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/psiquelab/portal/internal/access"
	"github.com/psiquelab/portal/internal/backend"
	"github.com/psiquelab/portal/internal/catalog"
	"github.com/psiquelab/portal/internal/chat"
	"github.com/psiquelab/portal/internal/stats"
	"github.com/psiquelab/portal/internal/types"
)

type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateActive
	StateTearingDown
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateTearingDown:
		return "tearing_down"
	default:
		return "unknown"
	}
}

var (
	// ErrLoginFailed is the generic login failure. Bad credentials and an
	// empty access grant surface identically so the caller cannot tell
	// which one occurred.
	ErrLoginFailed = errors.New("invalid email or password")
	// ErrSessionActive means Login was called while a session exists.
	ErrSessionActive = errors.New("a session is already active")
	// ErrNotActive means the operation needs an active session.
	ErrNotActive = errors.New("no active session")
)

// ChatLifecycle is the chat side of the session lifecycle: the session
// controller activates it when a member session starts and deactivates it
// on teardown. chat.Service implements it.
type ChatLifecycle interface {
	Activate(ctx context.Context, self uuid.UUID) (*chat.Transcript, error)
	Deactivate() error
}

// Hooks let outer layers observe lifecycle transitions. OnTearingDown
// runs before the identity is cleared.
type Hooks struct {
	OnActivated   func(*Session)
	OnTearingDown func(*Session)
}

// Session is the owned context of one active member: identity, grants,
// gated catalog, files and transcript. It is discarded on teardown.
type Session struct {
	Identity   types.Identity
	Profile    types.Profile
	Tiers      []types.TierRef
	Engine     *catalog.Engine
	Transcript *chat.Transcript
	Files      []types.FileItem
}

// DisplayName is the member-facing greeting name.
func (s *Session) DisplayName() string {
	return s.Profile.DisplayName(s.Identity.Email)
}

// Controller drives the login/logout state machine and owns the active
// session and its subscription lifetimes.
type Controller struct {
	ids      backend.IdentityService
	db       backend.Repository
	resolver *access.Resolver
	progress *catalog.ProgressStore
	chat     ChatLifecycle
	stats    stats.StatsProvider
	log      *log.Logger

	mu      sync.Mutex
	state   State
	epoch   uint64
	session *Session
	hooks   []Hooks
}

func NewController(ids backend.IdentityService, db backend.Repository, chatSvc ChatLifecycle,
	statsProvider stats.StatsProvider, logger *log.Logger) *Controller {
	statsProvider.RegisterMetric(stats.ActiveSessions)
	statsProvider.RegisterMetric(stats.StaleResponsesDropped)
	statsProvider.RegisterMetric(stats.CompletionsRecorded)
	return &Controller{
		ids:      ids,
		db:       db,
		resolver: access.NewResolver(db, logger),
		progress: catalog.NewProgressStore(db, logger),
		chat:     chatSvc,
		stats:    statsProvider,
		log:      logger,
		state:    StateLoggedOut,
	}
}

// RegisterHooks must be called before Login.
func (c *Controller) RegisterHooks(h Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session, or false outside Active.
func (c *Controller) Session() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return nil, false
	}
	return c.session, true
}

// Login authenticates and composes the member view. Rejected credentials
// and an empty grant both return ErrLoginFailed; read failures while
// composing the view propagate as-is and leave the controller logged out.
func (c *Controller) Login(ctx context.Context, email, password string) (*Session, error) {
	c.mu.Lock()
	if c.state != StateLoggedOut {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.state = StateAuthenticating
	c.epoch++
	c.mu.Unlock()

	identity, err := c.ids.SignIn(ctx, email, password)
	if err != nil {
		c.log.Println("sign in:", err)
		c.setLoggedOut()
		return nil, ErrLoginFailed
	}

	sess, err := c.compose(ctx, identity)
	if err != nil {
		if signOutErr := c.ids.SignOut(ctx); signOutErr != nil {
			c.log.Println("sign out after failed login:", signOutErr)
		}
		c.setLoggedOut()
		if errors.Is(err, access.ErrNoAccess) {
			c.log.Println("login rejected:", err)
			return nil, ErrLoginFailed
		}
		return nil, err
	}

	c.mu.Lock()
	c.state = StateActive
	c.session = sess
	hooks := c.hooks
	c.mu.Unlock()

	c.stats.Incr(stats.ActiveSessions)
	for _, h := range hooks {
		if h.OnActivated != nil {
			h.OnActivated(sess)
		}
	}

	return sess, nil
}

// Resume restores a persisted session, composing the member view the
// same way Login does.
func (c *Controller) Resume(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.state != StateLoggedOut {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	c.state = StateAuthenticating
	c.epoch++
	c.mu.Unlock()

	identity, err := c.ids.GetSession(ctx)
	if err != nil {
		c.setLoggedOut()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	sess, err := c.compose(ctx, identity)
	if err != nil {
		c.setLoggedOut()
		if errors.Is(err, access.ErrNoAccess) {
			// Terminal for the persisted session as well.
			if signOutErr := c.ids.SignOut(ctx); signOutErr != nil {
				c.log.Println("sign out after failed resume:", signOutErr)
			}
			return nil, ErrLoginFailed
		}
		return nil, err
	}

	c.mu.Lock()
	c.state = StateActive
	c.session = sess
	hooks := c.hooks
	c.mu.Unlock()

	c.stats.Incr(stats.ActiveSessions)
	for _, h := range hooks {
		if h.OnActivated != nil {
			h.OnActivated(sess)
		}
	}

	return sess, nil
}

// compose builds the member view: grants, profile, gated catalog, files
// and the live transcript. Profile and file reads are non-fatal; grant
// and catalog reads are required.
func (c *Controller) compose(ctx context.Context, identity types.Identity) (*Session, error) {
	tiers, err := c.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	profile, err := c.db.GetProfile(ctx, identity.Id)
	if err != nil {
		// Greeting falls back to the email local part.
		c.log.Println("profile:", err)
		profile = types.Profile{UserId: identity.Id}
	}

	items, err := c.db.ListContent(ctx, tiers)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	engine := catalog.NewEngine(c.progress, c.stats, c.log)
	if err := engine.Load(ctx, identity.Id, items); err != nil {
		return nil, err
	}

	files, err := c.db.ListFiles(ctx, tiers)
	if err != nil {
		c.log.Println("files:", err)
		files = nil
	}

	transcript, err := c.chat.Activate(ctx, identity.Id)
	if err != nil {
		return nil, fmt.Errorf("activate chat: %w", err)
	}

	return &Session{
		Identity:   identity,
		Profile:    profile,
		Tiers:      tiers,
		Engine:     engine,
		Transcript: transcript,
		Files:      files,
	}, nil
}

// MarkCompleted records a completion on the active session and reports
// the auto-advance target. A result that lands after the session changed
// is dropped rather than applied to the new session.
func (c *Controller) MarkCompleted(ctx context.Context, itemId uuid.UUID) (types.ContentItem, bool, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return types.ContentItem{}, false, ErrNotActive
	}
	sess := c.session
	epoch := c.epoch
	c.mu.Unlock()

	if err := sess.Engine.MarkCompleted(ctx, sess.Identity.Id, itemId); err != nil {
		return types.ContentItem{}, false, err
	}

	c.mu.Lock()
	stale := c.epoch != epoch
	c.mu.Unlock()
	if stale {
		c.stats.Incr(stats.StaleResponsesDropped)
		return types.ContentItem{}, false, ErrNotActive
	}

	next, ok := sess.Engine.NextUnlocked(itemId)
	return next, ok, nil
}

// Logout tears the session down: the chat subscription closes before the
// identity is cleared so no live callback can land on a dead session.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.state = StateTearingDown
	c.epoch++
	sess := c.session
	hooks := c.hooks
	c.mu.Unlock()

	for _, h := range hooks {
		if h.OnTearingDown != nil {
			h.OnTearingDown(sess)
		}
	}

	if err := c.chat.Deactivate(); err != nil {
		c.log.Println("deactivate chat:", err)
	}

	if err := c.ids.SignOut(ctx); err != nil {
		c.log.Println("sign out:", err)
	}

	c.mu.Lock()
	c.session = nil
	c.state = StateLoggedOut
	c.mu.Unlock()

	c.stats.Decr(stats.ActiveSessions)
	return nil
}

func (c *Controller) setLoggedOut() {
	c.mu.Lock()
	c.session = nil
	c.state = StateLoggedOut
	c.mu.Unlock()
}
