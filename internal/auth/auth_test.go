package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator struct {
	subject string
	err     error
}

func (f fakeAuthenticator) Verify(context.Context, string) (string, error) {
	return f.subject, f.err
}

func TestDisabledAuthenticatorAlwaysSucceeds(t *testing.T) {
	subject, err := DisabledAuthenticator{}.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "anonymous" {
		t.Errorf("subject = %q, want %q", subject, "anonymous")
	}
}

func runWithAuth(authenticator Authenticator, header string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(RequireAuth(authenticator))
	r.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	w := runWithAuth(DisabledAuthenticator{}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthRejectsNonBearerHeader(t *testing.T) {
	w := runWithAuth(DisabledAuthenticator{}, "Basic dXNlcjpwYXNz")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	w := runWithAuth(fakeAuthenticator{subject: "user-1"}, "Bearer good-token")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireAuthRejectsWhenVerifyFails(t *testing.T) {
	w := runWithAuth(fakeAuthenticator{err: errors.New("expired")}, "Bearer bad-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
