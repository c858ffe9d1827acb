package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hka-connector/internal/application/dto"
	"github.com/jhoicas/hka-connector/internal/domain"
	apphttp "github.com/jhoicas/hka-connector/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/hka-connector/pkg/jwt"
)

type fakeAuth struct {
	gotCompany string
}

func (f *fakeAuth) RegisterOperator(_ context.Context, companyID string, in dto.RegisterOperatorRequest) (*dto.UserResponse, error) {
	f.gotCompany = companyID
	if in.Email == "dup@acme.pe" {
		return nil, domain.ErrEmailAlreadyExists
	}
	return &dto.UserResponse{ID: "u-1", CompanyID: companyID, Email: in.Email, Role: pkgjwt.RoleOperator}, nil
}

func (f *fakeAuth) Login(_ context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	if in.Password != "correcta" {
		return nil, domain.ErrUnauthorized
	}
	return &dto.LoginResponse{Token: "tok", User: dto.UserResponse{Email: in.Email}}, nil
}

func newAuthApp(a *fakeAuth) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Auth: a, HKA: &fakeOps{}, Passes: &fakePasses{}, JWTSecret: testJWTSecret})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body, role string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := pkgjwt.Generate(testJWTSecret, testUserID, testCompanyID, role, testIssuer, testExpMin)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	app := newAuthApp(&fakeAuth{})

	resp := postJSON(t, app, "/api/auth/login", `{"email":"ops@acme.pe","password":"correcta"}`, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "tok", out.Token)

	bad := postJSON(t, app, "/api/auth/login", `{"email":"ops@acme.pe","password":"mala"}`, "")
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	empty := postJSON(t, app, "/api/auth/login", `{"email":""}`, "")
	defer empty.Body.Close()
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestAuthHandler_RegisterOperator(t *testing.T) {
	fa := &fakeAuth{}
	app := newAuthApp(fa)

	resp := postJSON(t, app, "/api/auth/operators", `{"email":"new@acme.pe","password":"suficiente"}`, pkgjwt.RoleAdmin)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testCompanyID, fa.gotCompany, "la empresa sale del token")

	dup := postJSON(t, app, "/api/auth/operators", `{"email":"dup@acme.pe","password":"suficiente"}`, pkgjwt.RoleAdmin)
	defer dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	denied := postJSON(t, app, "/api/auth/operators", `{"email":"x@acme.pe","password":"suficiente"}`, pkgjwt.RoleOperator)
	defer denied.Body.Close()
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)
}
