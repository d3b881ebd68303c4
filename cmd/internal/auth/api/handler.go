package authapi

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"passage/cmd/internal/auth/apikey"
	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
	"passage/cmd/security/token"
)

const (
	setupPath  = "/setup"
	promptPath = "/prompt"
)

// Handler wires the HTTP surface to the session manager and API key binder.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Manager
	binder   *apikey.Binder

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the time source. Defaults to time.Now in UTC.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Manager, binder *apikey.Binder, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil || binder == nil {
		return nil, errors.New("auth: nil session manager or api key binder")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		binder:   binder,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto r behind Authenticate.
func (h *Handler) Register(r chi.Router) {
	if h == nil || r == nil {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Get(setupPath, h.handleSetupStatus)
		r.Post(setupPath, h.handleSetup)
		r.Get(promptPath, h.handlePrompt)
		r.Post("/api/bfl", h.handleAPIKey)

		r.Post("/auth/logout", h.handleLogout)
		r.Post("/auth/logout_all", h.handleLogoutAll)
		r.Get("/me", h.handleMe)
	})
}

// ---- handlers ----

func (h *Handler) handleSetupStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, promptPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, setupStatusResponse{Authenticated: false})
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	key, err := h.readSetupKey(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	now := h.now()

	tok, err := token.Generate()
	if err != nil {
		h.log.Error("auth.setup.token.fail", "err", err)
		writeInternal(w)
		return
	}
	sess, err := h.sessions.Create(ctx, now, tok, credential.LocalPrincipalID)
	if err != nil {
		h.log.Error("auth.setup.session.fail", "err", err)
		writeInternal(w)
		return
	}
	h.setSessionCookie(w, tok, sess.ExpiresAt)

	// The session stands even when the key cannot be bound.
	stored, err := h.binder.Store(ctx, now, tok, key)
	switch {
	case err != nil:
		h.log.Error("auth.setup.apikey.fail", "err", err)
	case !stored:
		h.log.Error("auth.setup.apikey.unbound")
	}

	h.audit(r, "auth.setup", "session", token.ShortID(sess.ID), "principal_id", sess.PrincipalID, "key_stored", stored)
	http.Redirect(w, r, promptPath, http.StatusSeeOther)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, setupPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, toPromptResponse(id))
}

func (h *Handler) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
		return
	}

	key, err := h.binder.FetchForPrincipal(r.Context(), id.Principal.ID)
	switch {
	case errors.Is(err, apikey.ErrKeyNotProvisioned):
		writeError(w, http.StatusNotFound, codeKeyNotProvisioned, "no api key stored")
		return
	case err != nil:
		h.log.Error("auth.apikey.fetch.fail", "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, apiKeyResponse{APIKey: key})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if ok {
		if err := h.sessions.Invalidate(r.Context(), id.Session.ID); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeInternal(w)
			return
		}
		h.audit(r, "auth.logout", "session", token.ShortID(id.Session.ID), "principal_id", id.Principal.ID)
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	n, err := h.sessions.InvalidateAll(r.Context(), id.Principal.ID)
	if err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeInternal(w)
		return
	}
	h.audit(r, "auth.logout_all", "principal_id", id.Principal.ID, "count", n)
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, toMeResponse(id))
}

// ---- helpers ----

// readSetupKey accepts either a JSON body or a form post carrying apiKey.
func (h *Handler) readSetupKey(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req setupRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.APIKey), nil
	}

	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.PostForm.Get("apiKey")), nil
}
