package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT presented by staff, drivers
// and customers. Token minting lives in the identity service; this backend
// only parses and trusts the claims.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	Role     enums.ActorRole `json:"role"`
	BranchID *uuid.UUID      `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}
