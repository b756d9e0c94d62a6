package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"kamiscan-backend/internal/accounts"
	sharedauth "kamiscan-backend/internal/shared/auth"
	"kamiscan-backend/internal/shared/server/respond"
	"kamiscan-backend/internal/shared/telemetry"
)

var userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AccountUpserter persists the identity returned by Google.
type AccountUpserter interface {
	UpsertFromAuth(ctx context.Context, account accounts.Account) (accounts.Account, error)
}

// GoogleService handles the Google OAuth code flow and browser sessions.
type GoogleService struct {
	oauthConfig  *oauth2.Config
	accounts     AccountUpserter
	uiRedirect   string
	secureCookie bool
	stateTTL     time.Duration
	stateStore   *stateStore
}

// NewGoogleService builds a GoogleService. secureCookie marks the session
// cookie Secure and should be set outside local development.
func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, accountsSvc AccountUpserter, secureCookie bool) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		accounts:     accountsSvc,
		uiRedirect:   uiRedirect,
		secureCookie: secureCookie,
		stateTTL:     5 * time.Minute,
		stateStore:   newStateStore(),
	}
}

// RegisterRoutes attaches auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
	rg.POST("/auth/logout", s.logout)
}

func (s *GoogleService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		telemetry.Warn("auth.userinfo_failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"error":      telemetry.ErrorField(err),
		})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	if info.Sub == "" || info.Email == "" {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "invalid user profile", nil)
		return
	}

	account, err := s.accounts.UpsertFromAuth(ctx, accounts.Account{
		ID:    "google:" + info.Sub,
		Email: info.Email,
		Name:  info.Name,
		Image: info.Picture,
	})
	if err != nil {
		telemetry.Error("auth.upsert_failed", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"error":      telemetry.ErrorField(err),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to persist account", nil)
		return
	}

	session, err := sharedauth.SignJWT(sharedauth.Claims{
		Email:            account.Email,
		Name:             account.Name,
		Picture:          account.Image,
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, session)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	telemetry.Info("auth.signed_in", map[string]any{
		"request_id": telemetry.RequestID(ctx),
		"user_id":    account.ID,
		"plan":       account.Subscription,
	})
	s.setSessionCookie(c, session, int(sharedauth.SessionTTL.Seconds()))
	c.Redirect(http.StatusFound, redirectURL)
}

func (s *GoogleService) logout(c *gin.Context) {
	s.setSessionCookie(c, "", -1)
	respond.OK(c, gin.H{"success": true})
}

func (s *GoogleService) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sharedauth.SessionCookieName, value, maxAge, "/", "", s.secureCookie, true)
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}

	// The v2 endpoint reports "id" rather than "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	return info, nil
}

// stateStore keeps one-shot OAuth states until they expire.
type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, expiry := range s.items {
		if now.After(expiry) {
			delete(s.items, key)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	delete(s.items, state)
	s.mu.Unlock()
	return ok && !time.Now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
