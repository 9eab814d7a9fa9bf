package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/metalearn/apps/api/echo"
	"github.com/trezcool/metalearn/core/user"
	testutil "github.com/trezcool/metalearn/tests"
)

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", "", user.RoleStudent, true)

	body := func(name, email, role, pwd, confirm string) []byte {
		return marshalObj(t, map[string]string{
			"name": name, "email": email, "role": role, "password": pwd, "password_confirm": confirm,
		})
	}
	path := "/v1/users/register"

	tests := []httpTest{
		{
			name: "Email exists", method: http.MethodPost, path: path,
			body:     body("Alice 2", "ALICE@example.com ", "", "Kinshasa-2024", "Kinshasa-2024"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
		{
			name: "Invalid data", method: http.MethodPost, path: path,
			body:     body("", "not-an-email", "", "", "x"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"email": "email must be a valid email address",
				"password": "this field is required",
				"password_confirm": "password_confirm must be equal to Password"
			}`),
		},
		{
			name: "Weak password", method: http.MethodPost, path: path,
			body:     body("Carol", "carol@example.com", "", "12345678", "12345678"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Teacher self registration", method: http.MethodPost, path: path,
			body:     body("Carol", "carol@example.com", user.RoleTeacher, "Kinshasa-2024", "Kinshasa-2024"),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"role": "only students can self register"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.run(t, tt)
		})
	}

	t.Run("Success", func(t *testing.T) {
		rec := env.run(t, httpTest{
			method: http.MethodPost, path: path,
			body:     body(" Bob ", "Bob@Example.com", "", "Kinshasa-2024", "Kinshasa-2024"),
			wantCode: http.StatusCreated,
		})

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Bob", got["name"])
		assert.Equal(t, "bob@example.com", got["email"])
		assert.Equal(t, user.RoleStudent, got["role"])
		assert.Equal(t, true, got["is_active"])
		assert.NotContains(t, got, "password_hash")
		assert.NotContains(t, got, "PasswordHash")

		usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "bob@example.com"})
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("Kinshasa-2024"))
	})
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	pwd := "Kinshasa-2024"
	testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", pwd, user.RoleStudent, true)
	testutil.CreateUser(t, env.usrRepo, "Gone", "gone@example.com", pwd, user.RoleStudent, false)
	path := "/v1/users/login"

	body := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	errFailed := marshalObj(t, httpErr{Error: "incorrect email or password"})

	tests := []httpTest{
		{
			name: "Missing fields", method: http.MethodPost, path: path, body: body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "Unknown email", method: http.MethodPost, path: path, body: body("nobody@example.com", pwd),
			wantCode: http.StatusUnauthorized, wantData: errFailed,
		},
		{
			name: "Wrong password", method: http.MethodPost, path: path, body: body("alice@example.com", "nope"),
			wantCode: http.StatusUnauthorized, wantData: errFailed,
		},
		{
			name: "Deactivated", method: http.MethodPost, path: path, body: body("gone@example.com", pwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.run(t, tt)
		})
	}

	t.Run("Success (JSON)", func(t *testing.T) {
		rec := env.run(t, httpTest{method: http.MethodPost, path: path, body: body(" Alice@Example.com", pwd)})

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "bearer", resp.TokenType)
		require.NotEmpty(t, resp.AccessToken)

		usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "alice@example.com"})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())

		// the token works on authed endpoints
		env.run(t, httpTest{path: "/v1/users/me", token: resp.AccessToken, wantData: marshalObj(t, usr)})
	})

	t.Run("Success (form)", func(t *testing.T) {
		form := url.Values{"username": {"alice@example.com"}, "password": {pwd}}
		req := newAuthRequest(http.MethodPost, path, "", []byte(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := env.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", "", user.RoleStudent, true)

	env.run(t, httpTest{path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)})
	env.run(t, httpTest{path: "/v1/users/me", token: env.getToken(t, alice), wantData: marshalObj(t, alice)})

	req := newAuthRequest(http.MethodGet, "/v1/users/me", "")
	req.Header.Set("Authorization", "Basic YWxpY2U6c2VjcmV0")
	rec := env.do(req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)}, rec)
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", "", user.RoleStudent, true)
	gone := testutil.CreateUser(t, env.usrRepo, "Gone", "gone@example.com", "", user.RoleStudent, false)
	path := "/v1/users/token-refresh"

	env.run(t, httpTest{method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)})
	env.run(t, httpTest{
		method: http.MethodPost, path: path, token: env.getToken(t, gone),
		wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
	})

	// refresh window is over
	claims := env.auth.UserClaims(alice, 1)
	stale, err := env.auth.GenerateToken(claims)
	require.NoError(t, err)
	env.run(t, httpTest{
		method: http.MethodPost, path: path, token: stale,
		wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
	})

	rec := env.run(t, httpTest{method: http.MethodPost, path: path, token: env.getToken(t, alice)})
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)
	alice := testutil.CreateUser(t, env.usrRepo, "Alice", "alice@example.com", "Old-password-1", user.RoleStudent, true)
	success := marshalObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	env.run(t, httpTest{
		method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "nobody@example.com"}`),
		wantData: success,
	})
	assert.Empty(t, env.mailSvc.SentMessages())

	env.run(t, httpTest{
		method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "Alice@example.com"}`),
		wantData: success,
	})
	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To[0].Address)

	data := sent[0].TemplateData.(map[string]string)
	assert.True(t, strings.Contains(sent[0].TextContent, data["UID"]+"/"+data["Token"]))

	confirm := func(uid, token, pwd string) []byte {
		return marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: pwd})
	}
	path := "/v1/users/password-reset-confirm"

	env.run(t, httpTest{
		method: http.MethodPost, path: path, body: confirm(data["UID"], "bad-token", "New-password-2"),
		wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid or expired password reset link"}),
	})
	env.run(t, httpTest{
		method: http.MethodPost, path: path, body: confirm(data["UID"], data["Token"], "New-password-2"),
		wantData: marshalObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
	})

	usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: alice.ID})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("New-password-2"))

	// the link is single use: the token is bound to the password hash
	env.run(t, httpTest{
		method: http.MethodPost, path: path, body: confirm(data["UID"], data["Token"], "Other-password-3"),
		wantCode: http.StatusBadRequest,
	})
}
