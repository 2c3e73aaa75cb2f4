package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fieldworks/internal/config"
	"fieldworks/internal/domain"
)

const staffAudience = "access"

// Claims represents the staff JWT claims with tenant context. Staff tokens
// are issued by the account service; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
}

// PortalClaims scopes a portal token to one client of one tenant.
type PortalClaims struct {
	jwt.RegisteredClaims
	TenantID uuid.UUID `json:"tenant_id"`
	ClientID uuid.UUID `json:"client_id"`
}

// PortalToken is returned after a successful portal login.
type PortalToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService defines the token contract.
type AuthService interface {
	ValidateToken(tokenString string) (*Claims, error)
	IssuePortalToken(tenantID, clientID uuid.UUID) (*PortalToken, error)
	ValidatePortalToken(tokenString string) (*PortalClaims, error)
}

type authService struct {
	jwtCfg    config.JWTConfig
	portalCfg config.PortalConfig
}

// NewAuthService creates a new AuthService implementation.
func NewAuthService(jwtCfg config.JWTConfig, portalCfg config.PortalConfig) AuthService {
	if portalCfg.TokenAudience == "" {
		portalCfg.TokenAudience = "portal"
	}
	if portalCfg.TokenExpiry <= 0 {
		portalCfg.TokenExpiry = 24 * time.Hour
	}
	return &authService{jwtCfg: jwtCfg, portalCfg: portalCfg}
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims, staffAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *authService) IssuePortalToken(tenantID, clientID uuid.UUID) (*PortalToken, error) {
	now := time.Now()
	expiry := now.Add(s.portalCfg.TokenExpiry)

	claims := &PortalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID.String(),
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{s.portalCfg.TokenAudience},
		},
		TenantID: tenantID,
		ClientID: clientID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("signing portal token: %w", err)
	}
	return &PortalToken{AccessToken: signed, ExpiresAt: expiry}, nil
}

func (s *authService) ValidatePortalToken(tokenString string) (*PortalClaims, error) {
	claims := &PortalClaims{}
	if err := s.parse(tokenString, claims, s.portalCfg.TokenAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *authService) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	}, jwt.WithAudience(audience))
	if err != nil {
		return fmt.Errorf("parsing token: %w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid {
		return domain.ErrUnauthorized
	}
	return nil
}
