package testutil

import (
	"time"

	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
)

// JWTTestHelper provides utilities for JWT testing
type JWTTestHelper struct {
	Secret []byte
}

// NewJWTTestHelper creates a new JWT test helper with a default test secret
func NewJWTTestHelper() *JWTTestHelper {
	return &JWTTestHelper{
		Secret: []byte("test-secret-for-unit-tests"),
	}
}

// TestUser represents a test user for JWT generation
type TestUser struct {
	UserID string
	Email  string
	Plan   string
}

// DefaultTestUser returns a default test user
func DefaultTestUser() TestUser {
	return TestUser{
		UserID: "11111111-1111-1111-1111-111111111111",
		Email:  "test@example.com",
		Plan:   "free",
	}
}

// GenerateValidJWT generates a valid session token for the user
func (h *JWTTestHelper) GenerateValidJWT(u TestUser) string {
	token, err := auth.GenerateJWT(u.UserID, u.Email, u.Plan, h.Secret, time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

// BearerHeader returns an Authorization header value for the user
func (h *JWTTestHelper) BearerHeader(u TestUser) string {
	return "Bearer " + h.GenerateValidJWT(u)
}
