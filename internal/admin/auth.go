package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/machine-telemetry-qa-platform/internal/auth"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents successful login
type LoginResponse struct {
	User   *UserResponse   `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// UserResponse represents user information
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RegisterAuthRoutes registers authentication routes
func (s *Service) RegisterAuthRoutes(router *mux.Router) {
	authRouter := router.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/login", s.handleLogin).Methods("POST")
	authRouter.HandleFunc("/logout", s.handleLogout).Methods("POST")
	authRouter.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	authRouter.HandleFunc("/me", s.handleMe).Methods("GET")
}

// handleLogin validates credentials and issues a token pair
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.userStore.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tokens, err := s.jwt.GenerateTokenPair(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		User: &UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
		},
		Tokens: tokens,
	})
}

// handleLogout revokes the presented refresh token
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		s.jwt.RevokeRefreshToken(req.RefreshToken)
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleRefresh exchanges a refresh token for a new token pair
func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	refreshToken, err := s.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	user, err := s.userStoreUserByID(refreshToken.UserID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	// Rotate: revoke the old refresh token before issuing a new pair
	s.jwt.RevokeRefreshToken(req.RefreshToken)

	tokens, err := s.jwt.GenerateTokenPair(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// handleMe returns the authenticated user's identity
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, err := s.claimsFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": &UserResponse{
			ID:       claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
		},
	})
}

// claimsFromRequest extracts and validates the bearer token from the request
func (s *Service) claimsFromRequest(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, auth.ErrInvalidToken
	}
	return s.jwt.ValidateAccessToken(token)
}

// userStoreUserByID finds a user by ID. The in-memory store is keyed by
// username, so this scans the user list.
func (s *Service) userStoreUserByID(userID string) (*auth.User, error) {
	users, err := s.userStore.ListUsers()
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, auth.ErrUserNotFound
}
