package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"painel-auth/pkg/identity"
	"painel-auth/pkg/keystore"
	"painel-auth/pkg/notify"
)

// User-facing messages. The product surface is pt-BR.
const (
	msgRequiredTitle      = "Campos obrigatórios"
	msgRequiredBody       = "Por favor, preencha todos os campos."
	msgShortPasswordTitle = "Senha muito curta"
	msgShortPasswordBody  = "A senha deve ter pelo menos 6 caracteres."
	msgSignInOKTitle      = "Login realizado com sucesso!"
	msgSignInOKBody       = "Bem-vindo de volta!"
	msgBadCredsTitle      = "Credenciais inválidas"
	msgBadCredsBody       = "Email ou senha incorretos."
	msgSignupOKTitle      = "Conta criada com sucesso!"
	msgSignupOKBody       = "Redirecionando para o login..."
	msgDuplicateTitle     = "Email já cadastrado"
	msgDuplicateBody      = "Uma conta com este email já existe. Por favor, faça login."
	msgSignOutTitle       = "Logout realizado"
	msgSignOutBody        = "Você foi desconectado com sucesso."
	msgGoneTitle          = "Conta não encontrada"
	msgGoneBody           = "Sua conta foi excluída. Você será desconectado."
	msgSystemErrTitle     = "Erro no sistema"
	msgSystemErrBody      = "Ocorreu um erro inesperado. Por favor, tente novamente."
)

const (
	// MinPasswordLength is enforced locally before any sign-up request.
	MinPasswordLength = 6

	defaultRevalidateInterval = 5 * time.Minute
	defaultRedirectDelay      = 1500 * time.Millisecond
	revalidateTimeout         = 10 * time.Second
)

// ErrClosed is returned by operations after Close.
var ErrClosed = errors.New("lifecycle: manager closed")

// Config wires a Manager. Client is required; everything else has a
// working default.
type Config struct {
	Client   identity.Client
	Notifier notify.Notifier
	Nav      Navigator

	// Store, when set, is purged of auth keys on every sign-out as a
	// second line of defence alongside the client's own cleanup.
	Store *keystore.Store

	// RevalidateInterval is how often an authenticated session is checked
	// against the server. Defaults to 5 minutes.
	RevalidateInterval time.Duration

	// RedirectDelay is how long after a sign-up settles the redirect to
	// the login page fires, leaving the outcome message readable.
	// Defaults to 1.5 seconds.
	RedirectDelay time.Duration
}

// AutoRefresher is implemented by identity clients that can renew their
// session in the background. The manager starts it under its own context so
// refreshing stops when the manager closes.
type AutoRefresher interface {
	StartAutoRefresh(ctx context.Context)
}

type call struct {
	fn   func()
	done chan struct{}
}

// Manager runs the session lifecycle. All state changes are applied by one
// goroutine started by Start; public methods hand work to it and wait.
type Manager struct {
	client identity.Client
	notif  notify.Notifier
	nav    Navigator
	store  *keystore.Store

	revalidateInterval time.Duration
	redirectDelay      time.Duration

	calls chan call
	done  chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	subMu sync.Mutex
	subs  []chan Snapshot

	timerMu sync.Mutex
	timers  []*time.Timer

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewManager builds a Manager from cfg. The manager is inert until Start.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("lifecycle: Config.Client is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Nav == nil {
		cfg.Nav = NopNavigator{}
	}
	if cfg.RevalidateInterval <= 0 {
		cfg.RevalidateInterval = defaultRevalidateInterval
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = defaultRedirectDelay
	}
	return &Manager{
		client:             cfg.Client,
		notif:              cfg.Notifier,
		nav:                cfg.Nav,
		store:              cfg.Store,
		revalidateInterval: cfg.RevalidateInterval,
		redirectDelay:      cfg.RedirectDelay,
		calls:              make(chan call),
		done:               make(chan struct{}),
		snap:               Snapshot{State: StateUninitialized},
	}, nil
}

// Start restores the persisted session and begins processing events and
// periodic revalidation. It returns once the restore has settled, so
// IsInitialized is true when Start returns. Calling Start twice is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		ready := make(chan struct{})
		go m.run(ctx, ready)
		<-ready
	})
}

// Close stops the manager and waits for its goroutine to exit. Operations
// issued after Close fail with ErrClosed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
		m.timerMu.Lock()
		for _, t := range m.timers {
			t.Stop()
		}
		m.timers = nil
		m.timerMu.Unlock()
	})
}

// Snapshot returns the current lifecycle state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe returns a channel that receives every settled snapshot. Slow
// receivers lose the oldest snapshot, never the newest.
func (m *Manager) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// SignIn authenticates with email and password. Empty fields fail locally
// with a notification and no network call.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		m.notif.Notify(notify.Notification{Type: notify.TypeWarning, Message: msgRequiredTitle, Description: msgRequiredBody})
		return identity.NewError(identity.KindValidation, "missing_fields", "email and password are required", nil)
	}
	var opErr error
	err := m.do(ctx, func() {
		m.setMutating()
		sess, err := m.client.SignInWithPassword(ctx, email, password)
		if err != nil {
			opErr = err
			m.settle(m.snapLocked().Session)
			if identity.KindOf(err) == identity.KindCredential {
				m.notif.Notify(notify.Notification{Type: notify.TypeError, Message: msgBadCredsTitle, Description: msgBadCredsBody})
			} else {
				m.notif.Notify(notify.Notification{Type: notify.TypeError, Message: msgSystemErrTitle, Description: msgSystemErrBody})
			}
			return
		}
		m.settle(sess)
		m.notif.Notify(notify.Notification{Type: notify.TypeSuccess, Message: msgSignInOKTitle, Description: msgSignInOKBody})
		m.applyRedirect()
	})
	if err != nil {
		return err
	}
	return opErr
}

// SignUp registers a new account. It never signs the account in; on
// success, and on a duplicate email, the user is sent to the login page
// after RedirectDelay.
func (m *Manager) SignUp(ctx context.Context, email, password, name string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		m.notif.Notify(notify.Notification{Type: notify.TypeWarning, Message: msgRequiredTitle, Description: msgRequiredBody})
		return identity.NewError(identity.KindValidation, "missing_fields", "email and password are required", nil)
	}
	if len(password) < MinPasswordLength {
		m.notif.Notify(notify.Notification{Type: notify.TypeWarning, Message: msgShortPasswordTitle, Description: msgShortPasswordBody})
		return identity.NewError(identity.KindValidation, "password_too_short", "password must be at least 6 characters", nil)
	}
	var opErr error
	err := m.do(ctx, func() {
		m.setMutating()
		_, err := m.client.SignUp(ctx, email, password, name)
		m.settle(m.snapLocked().Session)
		switch {
		case err == nil:
			m.notif.Notify(notify.Notification{Type: notify.TypeSuccess, Message: msgSignupOKTitle, Description: msgSignupOKBody})
			m.redirectAfterDelay(PathLogin)
		case identity.KindOf(err) == identity.KindDuplicateAccount:
			opErr = err
			m.notif.Notify(notify.Notification{Type: notify.TypeError, Message: msgDuplicateTitle, Description: msgDuplicateBody})
			m.redirectAfterDelay(PathLogin)
		case identity.KindOf(err) == identity.KindValidation:
			opErr = err
			m.notif.Notify(notify.Notification{Type: notify.TypeWarning, Message: msgShortPasswordTitle, Description: msgShortPasswordBody})
		default:
			opErr = err
			m.notif.Notify(notify.Notification{Type: notify.TypeError, Message: msgSystemErrTitle, Description: msgSystemErrBody})
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// SignOut ends the session. Local state is cleared even when the server
// cannot be reached.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.do(ctx, func() {
		m.setMutating()
		m.signOutLocked(ctx)
		m.notif.Notify(notify.Notification{Type: notify.TypeSuccess, Message: msgSignOutTitle, Description: msgSignOutBody})
		m.applyRedirect()
	})
}

// Guard re-applies the redirect policy against the navigator's current
// path. Surfaces call it on route changes.
func (m *Manager) Guard(ctx context.Context) error {
	return m.do(ctx, func() {
		m.applyRedirect()
	})
}

func (m *Manager) run(ctx context.Context, ready chan<- struct{}) {
	defer close(m.done)
	m.publish(Snapshot{State: StateChecking, IsLoading: true})
	sess, err := m.client.GetSession(ctx)
	if err != nil {
		sess = nil
	}
	m.settle(sess)
	m.applyRedirect()
	close(ready)

	if ar, ok := m.client.(AutoRefresher); ok {
		ar.StartAutoRefresh(ctx)
	}

	ticker := time.NewTicker(m.revalidateInterval)
	defer ticker.Stop()
	events := m.client.Events()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.calls:
			c.fn()
			close(c.done)
		case <-ticker.C:
			m.revalidate(ctx)
		case e := <-events:
			m.handleEvent(e)
		}
	}
}

// do hands fn to the lifecycle goroutine and waits for it to finish.
func (m *Manager) do(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case m.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
	select {
	case <-c.done:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// revalidate checks the session against the server. Any failure forces a
// sign-out: the account may be gone, and a session that cannot be verified
// is not kept.
func (m *Manager) revalidate(ctx context.Context) {
	if m.snapLocked().State != StateAuthenticated {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, revalidateTimeout)
	defer cancel()
	if _, err := m.client.GetUser(rctx); err != nil {
		m.notif.Notify(notify.Notification{Type: notify.TypeInfo, Message: msgGoneTitle, Description: msgGoneBody})
		m.signOutLocked(ctx)
		m.applyRedirect()
	}
}

// handleEvent folds a client-side auth event into the snapshot. Events the
// manager itself caused are idempotent here.
func (m *Manager) handleEvent(e identity.AuthEvent) {
	snap := m.snapLocked()
	switch e.Type {
	case identity.TokenRefreshed, identity.SignedIn:
		if e.Session == nil {
			return
		}
		if snap.State == StateAuthenticated || snap.State == StateUnauthenticated {
			m.settle(e.Session)
			if snap.State == StateUnauthenticated {
				m.applyRedirect()
			}
		}
	case identity.SignedOut:
		if snap.State == StateAuthenticated {
			m.settle(nil)
			m.applyRedirect()
		}
	}
}

// signOutLocked clears local auth state and then tells the server, in that
// order. A dead server must never keep the user signed in.
func (m *Manager) signOutLocked(ctx context.Context) {
	if m.store != nil {
		_, _ = m.store.DeletePrefix("auth.")
	}
	_ = m.client.SignOut(ctx)
	m.settle(nil)
}

func (m *Manager) setMutating() {
	snap := m.snapLocked()
	snap.State = StateMutating
	snap.IsLoading = true
	m.publish(snap)
}

// settle records the post-operation session and marks the first settle as
// initialization.
func (m *Manager) settle(sess *identity.Session) {
	snap := m.snapLocked()
	snap.Session = sess
	if sess != nil {
		snap.State = StateAuthenticated
	} else {
		snap.State = StateUnauthenticated
	}
	snap.IsInitialized = true
	snap.IsLoading = false
	m.publish(snap)
}

// applyRedirect enforces the area policy: a signed-in user never sits on a
// public page, a signed-out user never sits on a protected one. At most one
// Replace fires per call.
func (m *Manager) applyRedirect() {
	snap := m.snapLocked()
	if !snap.IsInitialized || snap.IsLoading {
		return
	}
	path := m.nav.CurrentPath()
	authed := snap.Authenticated()
	switch {
	case authed && publicPath(path):
		m.nav.Replace(PathDash)
	case !authed && !publicPath(path):
		m.nav.Replace(PathLogin)
	}
}

// redirectAfterDelay schedules a replace navigation. The navigation is
// applied through the lifecycle goroutine, so the navigator is only ever
// called from it; a manager closed before the delay elapses never navigates.
func (m *Manager) redirectAfterDelay(path string) {
	t := time.AfterFunc(m.redirectDelay, func() {
		_ = m.do(context.Background(), func() {
			m.nav.Replace(path)
		})
	})
	m.timerMu.Lock()
	m.timers = append(m.timers, t)
	m.timerMu.Unlock()
}

func (m *Manager) snapLocked() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()

	m.subMu.Lock()
	subs := m.subs
	m.subMu.Unlock()
	for _, ch := range subs {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
					continue
				default:
				}
			}
			break
		}
	}
}
