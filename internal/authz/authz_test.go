package authz

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestRoleChecker(t *testing.T) {
	checker := NewRoleChecker("admin")

	assert.NoError(t, checker.Check(Principal{Role: "student"}, ActionCompleteGame, "student"))
	assert.NoError(t, checker.Check(Principal{Role: "teacher"}, ActionViewOwnWallet, ""))
	assert.NoError(t, checker.Check(Principal{Role: "admin"}, ActionCollectBadge, "parent"))

	err := checker.Check(Principal{Role: "teacher"}, ActionCompleteGame, "student")
	var authErr *apperrors.AuthorizationError
	if assert.True(t, errors.As(err, &authErr)) {
		assert.Equal(t, "student", authErr.RequiredRole)
		assert.Equal(t, "teacher", authErr.ActualRole)
		assert.Equal(t, http.StatusForbidden, authErr.Status())
	}
}
