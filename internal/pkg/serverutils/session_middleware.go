package serverutils

import (
	"net/url"
	"time"

	"casebook/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	LocalClientID     = "client_id"
	LocalSessionStore = "session_store"
	LocalSession      = "session"
)

type SessionConfig struct {
	CookieName string
	Secure     bool
	// StartupTimeout bounds how long a request waits for a new store to resolve.
	StartupTimeout time.Duration
}

// ClientSession identifies the browser by cookie and attaches its session store.
// The session is read once per request, after the store is ready or the timeout hits.
func ClientSession(registry *session.Registry, cfg SessionConfig) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		clientID := ctx.Cookies(cfg.CookieName)
		if _, err := uuid.Parse(clientID); err != nil {
			clientID = uuid.NewString()
			ctx.Cookie(&fiber.Cookie{
				Name:     cfg.CookieName,
				Value:    clientID,
				Path:     "/",
				HTTPOnly: true,
				Secure:   cfg.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		store := registry.Get(clientID)
		state := store.Await(ctx.UserContext(), cfg.StartupTimeout)

		ctx.Locals(LocalClientID, clientID)
		ctx.Locals(LocalSessionStore, store)
		ctx.Locals(LocalSession, state.Session)
		return ctx.Next()
	}
}

// RequireSession redirects to the login page when the request has no session.
func RequireSession() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if CurrentSession(ctx) == nil {
			return ctx.Redirect("/login?next="+url.QueryEscape(ctx.OriginalURL()), fiber.StatusSeeOther)
		}
		return ctx.Next()
	}
}

func ClientID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(LocalClientID).(string)
	return id
}

func SessionStore(ctx *fiber.Ctx) *session.Store {
	store, _ := ctx.Locals(LocalSessionStore).(*session.Store)
	return store
}

// CurrentSession returns the session seen by this request, or nil.
func CurrentSession(ctx *fiber.Ctx) *session.Session {
	s, _ := ctx.Locals(LocalSession).(*session.Session)
	return s
}
