package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role UserRole
}

// IsCrew reports whether the actor drives or conducts vehicles.
func (a Actor) IsCrew() bool {
	return a.Role == RoleDriver || a.Role == RoleConductor
}

// Actor projects the claims onto the workflow caller.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Role: c.Role}
}
