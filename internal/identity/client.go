package identity

import (
	"alcyxob/wellness-portal/internal/domain"
	"context"
	"slices"
	"sync"
)

// Client is one browser session's view of the identity service. It holds the
// current session and notifies subscribers after every change is committed.
type Client struct {
	svc Service

	mu        sync.Mutex
	session   *Session
	listeners map[int]Listener
	nextID    int
}

func NewClient(svc Service) *Client {
	return &Client{svc: svc, listeners: make(map[int]Listener)}
}

// OnAuthStateChange subscribes fn and returns the function that removes it.
func (c *Client) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Session returns the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SignInWithPassword authenticates and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.svc.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.commit(ctx, EventSignedIn, session)
	return session, nil
}

// SignUp registers an account. A session is only opened, and SIGNED_IN only
// emitted, when the service did not ask for email confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.Account, *Session, error) {
	account, session, err := c.svc.Register(ctx, email, password, meta)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		c.commit(ctx, EventSignedIn, session)
	}
	return account, session, nil
}

// SignOut terminates the session remotely and always clears it locally,
// emitting SIGNED_OUT. The remote error, if any, is returned afterwards.
func (c *Client) SignOut(ctx context.Context, scope SignOutScope) error {
	current := c.Session()
	var err error
	if current != nil {
		err = c.svc.TerminateSession(ctx, current, scope)
	}
	c.commit(ctx, EventSignedOut, nil)
	return err
}

// Restore loads a persisted access token and emits INITIAL_SESSION. An
// invalid token restores no session; the error explains why.
func (c *Client) Restore(ctx context.Context, accessToken string) (*Session, error) {
	session, err := c.svc.Verify(ctx, accessToken)
	if err != nil {
		c.commit(ctx, EventInitialSession, nil)
		return nil, err
	}
	c.commit(ctx, EventInitialSession, session)
	return session, nil
}

// Refresh renews the current token and emits TOKEN_REFRESHED.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	current := c.Session()
	if current == nil {
		return nil, ErrInvalidToken
	}
	session, err := c.svc.Refresh(ctx, current)
	if err != nil {
		return nil, err
	}
	c.commit(ctx, EventTokenRefreshed, session)
	return session, nil
}

// commit stores the session, then calls listeners outside the lock so they
// may call back into the client.
func (c *Client) commit(ctx context.Context, event AuthEvent, session *Session) {
	c.mu.Lock()
	c.session = session
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids) // subscription order
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	change := AuthStateChange{Event: event, Session: session}
	for _, fn := range listeners {
		fn(ctx, change)
	}
}
