package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func introspectionServer(t *testing.T, tokens map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/realms/hiring/protocol/openid-connect/token/introspect", r.URL.Path)
		assert.NoError(t, r.ParseForm())

		if r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, ok := tokens[r.PostForm.Get("token")]
		if !ok {
			body = map[string]interface{}{"active": false}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func activeToken(sub string, roles ...string) map[string]interface{} {
	return map[string]interface{}{
		"active":       true,
		"sub":          sub,
		"realm_access": map[string]interface{}{"roles": roles},
	}
}

func TestAuthenticate(t *testing.T) {
	srv := introspectionServer(t, map[string]map[string]interface{}{
		"applicant-token": activeToken("user-1", "offline_access", "applicant"),
		"multi-role":      activeToken("user-2", "interviewer", "RECRUITER", "uma_authorization"),
		"no-role":         activeToken("user-3", "offline_access"),
	})
	defer srv.Close()

	client := NewKeycloakClient(srv.URL+"/", "hiring", "pipeline-api", "secret", time.Second)

	tests := []struct {
		name     string
		token    string
		want     models.Principal
		wantCode errors.ErrorCode
	}{
		{"applicant", "applicant-token", models.Principal{ID: "user-1", Role: models.RoleApplicant}, ""},
		{"highest role wins", "multi-role", models.Principal{ID: "user-2", Role: models.RoleRecruiter}, ""},
		{"no pipeline role", "no-role", models.Principal{}, errors.ErrCodeUnauthorized},
		{"inactive", "expired", models.Principal{}, errors.ErrCodeAuthentication},
		{"empty", " ", models.Principal{}, errors.ErrCodeAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Authenticate(context.Background(), tt.token)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate_BadClientCredentials(t *testing.T) {
	srv := introspectionServer(t, nil)
	defer srv.Close()

	client := NewKeycloakClient(srv.URL, "hiring", "pipeline-api", "wrong", time.Second)
	_, err := client.Authenticate(context.Background(), "any")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthentication, errors.CodeOf(err))
}

func TestAuthenticate_KeycloakDown(t *testing.T) {
	srv := introspectionServer(t, nil)
	srv.Close()

	client := NewKeycloakClient(srv.URL, "hiring", "pipeline-api", "secret", time.Second)
	_, err := client.Authenticate(context.Background(), "any")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExternalService, errors.CodeOf(err))
	assert.True(t, errors.AsStandard(err).Retryable)
}
