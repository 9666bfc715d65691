package controller

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"go.uber.org/zap"
)

// sessionTTL bounds a wallet session token's lifetime. The encryption session
// behind it dies earlier if the wallet reconnects.
const sessionTTL = 8 * time.Hour

type connectRequest struct {
	Wallet string `json:"wallet"`
}

// HandleConnect activates an encryption session for the wallet and issues the
// bearer token that authenticates subsequent calls. Reconnecting replaces any
// previous session; ephemeral key material never survives the swap.
func (c *Controller) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if _, err := mpc.ParseAddress(req.Wallet); err != nil {
		respondError(w, http.StatusBadRequest, "malformed wallet address")
		return
	}

	session, err := c.App.Sessions.Activate(r.Context(), req.Wallet)
	if err != nil {
		c.App.Logger.Error("Failed to establish encryption session",
			zap.String("wallet", req.Wallet),
			zap.Error(err))
		respondError(w, http.StatusBadGateway, "encryption session unavailable")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.Wallet,
		"exp": time.Now().Add(sessionTTL).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString(c.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":        signed,
		"wallet":       req.Wallet,
		"ephemeralKey": session.PublicKey,
	})
}

// HandleDisconnect tears down the wallet's encryption session. The JWT stays
// valid until expiry but becomes useless for voting without a session.
func (c *Controller) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	c.App.Sessions.Deactivate(wallet)
	respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// RequireWallet middleware: accepts a bearer JWT and stamps the wallet into
// the request header for handlers.
func (c *Controller) RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, ok := c.walletFromToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		r.Header.Set("X-Wallet", wallet)
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) walletFromToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return c.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}

// wallet returns the authenticated wallet set by RequireWallet.
func (c *Controller) wallet(r *http.Request) string {
	return r.Header.Get("X-Wallet")
}
