package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
	"github.com/teresa-solution/agency-hub-service/internal/service"
)

type Middleware func(httprouter.Handle) httprouter.Handle

// chain applies mw so that the first one listed runs first
func chain(mw ...Middleware) Middleware {
	return func(final httprouter.Handle) httprouter.Handle {
		for i := len(mw) - 1; i >= 0; i-- {
			final = mw[i](final)
		}
		return final
	}
}

// Claims of a session token
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 session tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

// Issue starts a new session for userID. Every token carries its own
// session id, which keys per-session state such as the zoom viewer.
func (t *Tokens) Issue(userID uuid.UUID) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:    userID.String(),
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// PrincipalLoader resolves the roles and agencies of an authenticated user
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (*model.Principal, error)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the authentication middleware
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey{}).(*model.Principal)
	return p
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return header[7:]
}

// authenticate verifies the session token and loads the principal.
// Browsers cannot set headers on a websocket handshake, so upgrades may
// pass the token as access_token instead.
func (h *Handler) authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw := bearerToken(r)
		if raw == "" && websocket.IsWebSocketUpgrade(r) {
			raw = r.URL.Query().Get("access_token")
		}
		if raw == "" {
			writeError(w, r, fmt.Errorf("%w: missing token", service.ErrUnauthenticated))
			return
		}
		claims, err := h.tokens.Parse(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", service.ErrUnauthenticated, err))
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: malformed subject", service.ErrUnauthenticated))
			return
		}
		p, err := h.principals.LoadPrincipal(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p.SessionID = claims.SessionID
		next(w, r.WithContext(withPrincipal(r.Context(), p)), ps)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the recorder
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// observe logs the request and records its duration under the route pattern
func observe(route string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, ps)
		elapsed := time.Since(start)

		monitoring.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("Request handled")
	}
}
