// Package authz answers whether a caller may perform an action.
package authz

import (
	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actions guarded by the checker
const (
	ActionCompleteGame  = "complete game"
	ActionViewProgress  = "view game progress"
	ActionUnlockReplay  = "unlock replay"
	ActionViewBadge     = "view badge"
	ActionCollectBadge  = "collect badge"
	ActionAcknowledge   = "acknowledge badge"
	ActionViewOwnWallet = "view wallet"
)

// Principal is the authenticated caller
type Principal struct {
	UserID   primitive.ObjectID
	Role     string
	CampusID string
}

// Checker decides whether p may perform action on a resource owned by requiredRole.
// An empty requiredRole only requires authentication.
type Checker interface {
	Check(p Principal, action, requiredRole string) error
}

// RoleChecker allows an action when the caller's role equals the role the
// resource is meant for. Roles listed in Elevated may act for any role.
type RoleChecker struct {
	Elevated []string
}

// NewRoleChecker creates a RoleChecker
func NewRoleChecker(elevated ...string) *RoleChecker {
	return &RoleChecker{Elevated: elevated}
}

// Check implements Checker
func (c *RoleChecker) Check(p Principal, action, requiredRole string) error {
	if requiredRole == "" || p.Role == requiredRole {
		return nil
	}
	for _, r := range c.Elevated {
		if p.Role == r {
			return nil
		}
	}
	return &apperrors.AuthorizationError{Action: action, RequiredRole: requiredRole, ActualRole: p.Role}
}
