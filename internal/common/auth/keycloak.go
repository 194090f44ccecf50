// internal/common/auth/keycloak.go
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"hiring-pipeline/internal/common/errors"
	httpclient "hiring-pipeline/internal/common/http"
	"hiring-pipeline/internal/models"
)

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
}

// rolePrecedence decides the effective role when a token carries several
// pipeline roles.
var rolePrecedence = []models.Role{
	models.RoleAdmin,
	models.RoleManager,
	models.RoleRecruiter,
	models.RoleInterviewer,
	models.RoleApplicant,
}

// KeycloakClient authenticates tokens through the realm's introspection endpoint.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *httpclient.Client
}

// IntrospectionResponse is the subset of RFC 7662 fields Keycloak returns
// that the pipeline reads.
type IntrospectionResponse struct {
	Active      bool   `json:"active"`
	Subject     string `json:"sub"`
	Username    string `json:"preferred_username"`
	ExpiresAt   int64  `json:"exp"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpclient.NewClient(timeout),
	}
}

// Introspect asks Keycloak whether token is active.
func (k *KeycloakClient) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	var out IntrospectionResponse
	if err := k.httpClient.PostFormJSON(ctx, endpoint, form, &out); err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == 401 {
			return nil, errors.NewAuthenticationError("introspection client rejected by keycloak")
		}
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError("keycloak", err)
		}
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	return &out, nil
}

// Authenticate maps an active token to a principal carrying the highest
// pipeline role of the token's realm roles.
func (k *KeycloakClient) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return models.Principal{}, errors.NewAuthenticationError("missing bearer token")
	}

	resp, err := k.Introspect(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}
	if !resp.Active || resp.Subject == "" {
		return models.Principal{}, errors.NewAuthenticationError("token is not active")
	}

	role, ok := effectiveRole(resp.RealmAccess.Roles)
	if !ok {
		return models.Principal{}, errors.NewUnauthorizedError("token carries no pipeline role").
			WithMetadata("subject", resp.Subject)
	}
	return models.Principal{ID: resp.Subject, Role: role}, nil
}

func effectiveRole(roles []string) (models.Role, bool) {
	held := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		if role, err := models.ParseRole(r); err == nil {
			held[role] = true
		}
	}
	for _, role := range rolePrecedence {
		if held[role] {
			return role, true
		}
	}
	return "", false
}
