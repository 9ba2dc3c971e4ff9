package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"bitwise74/account-api/config"
	"bitwise74/account-api/db"
	"bitwise74/account-api/middleware"
	"bitwise74/account-api/model"
	"bitwise74/account-api/security"
	"bitwise74/account-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int

// newTestAPI wires the handlers against an in-memory database. The
// rate limiter and response cache stay out so tests can hammer the
// endpoints freely.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpiryDays = 7
	cfg.OTP.ExpiryMinutes = 5
	cfg.Upload.MaxSize = 5 << 20
	cfg.Storage.Type = "db"

	dbSeq++
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:api_test_%d?mode=memory&cache=shared", dbSeq)))
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(model.User{}))

	a := &API{
		DB:       gdb,
		Config:   cfg,
		Hash:     security.NewBcrypt(),
		OTP:      security.NewOTPVerifier(cfg.OTP.ExpiryMinutes),
		Tokens:   security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.ExpiryDays),
		Notifier: service.NewNotifier(cfg),
	}
	a.Users = db.NewUsers(gdb, a.Hash)
	a.Avatars = service.NewAvatarStore(cfg, nil)

	router := gin.New()
	router.Use(middleware.NewRequestIDMiddleware())

	jwt := middleware.NewJWTMiddleware(a.Users, a.Tokens)

	main := router.Group("/api")
	{
		main.HEAD("/heartbeat", a.Heartbeat)
		main.HEAD("/validate", jwt, a.Validate)
		main.POST("/register", a.UserRegister)
		main.POST("/login", a.UserLogin)
		main.POST("/generateOTP", a.OTPGenerate)
		main.POST("/verifyOTP", a.OTPVerify)
		main.POST("/change-password", jwt, a.PasswordChange)
		main.POST("/verify-password", a.PasswordVerify)
	}

	users := main.Group("/users")
	{
		users.GET("", jwt, a.UserFetch)
		users.GET("/:id/avatar", a.AvatarServe)
	}

	a.Router = router
	return a
}

func seedUser(t *testing.T, a *API, id, email, mobile, password string) *model.User {
	t.Helper()

	u := &model.User{
		ID:           id,
		Email:        email,
		MobileNumber: mobile,
		Username:     id,
	}
	u.SetPassword(password)
	require.NoError(t, a.Users.Create(context.Background(), u))
	return u
}

func registerBody(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if withImage {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
		h.Set("Content-Type", "image/png")

		part, err := w.CreatePart(h)
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	}

	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func doJSON(a *API, method, path, token string, body any) *httptest.ResponseRecorder {
	var r *bytes.Reader

	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	} else {
		r = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func defaultRegisterFields() map[string]string {
	return map[string]string{
		"email":         "A@X.com",
		"mobile_number": "555",
		"password":      "secret1",
		"username":      "a",
	}
}

func TestRegister(t *testing.T) {
	a := newTestAPI(t)

	body, ct := registerBody(t, defaultRegisterFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "a@x.com", out["email"])
	assert.Equal(t, "555", out["mobile_number"])

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", user.PasswordHash)
	ok, err := a.Hash.VerifyPasswd("secret1", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotNil(t, user.EmailOTP)
	require.NotNil(t, user.MobileOTP)
	require.NotNil(t, user.OTPGeneratedAt)

	assert.True(t, strings.HasPrefix(user.ProfileImage, "data:image/png;base64,"), user.ProfileImage[:32])
	assert.Equal(t, model.PlanFree, user.SubscriptionPlan)
}

func TestRegister_MissingFields(t *testing.T) {
	a := newTestAPI(t)

	fields := defaultRegisterFields()
	delete(fields, "username")

	body, ct := registerBody(t, fields, true)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MissingImage(t *testing.T) {
	a := newTestAPI(t)

	body, ct := registerBody(t, defaultRegisterFields(), false)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Profile image is required")
}

func TestRegister_Duplicates(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	var count int64

	// Same email, different mobile
	fields := defaultRegisterFields()
	fields["mobile_number"] = "556"

	body, ct := registerBody(t, fields, true)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")

	// Same mobile, different email
	fields = defaultRegisterFields()
	fields["email"] = "b@x.com"

	body, ct = registerBody(t, fields, true)
	req = httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mobile number already registered")

	require.NoError(t, a.DB.Model(model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLogin(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	rec := doJSON(a, http.MethodPost, "/api/login", "", gin.H{
		"email":    "a@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.NotEmpty(t, out["token"])

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
}

func TestLogin_GenericFailure(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	// Wrong password and unknown account read exactly the same
	wrongPass := doJSON(a, http.MethodPost, "/api/login", "", gin.H{
		"email":    "a@x.com",
		"password": "nope",
	})
	unknown := doJSON(a, http.MethodPost, "/api/login", "", gin.H{
		"email":    "ghost@x.com",
		"password": "secret1",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, stripRequestID(t, wrongPass.Body.Bytes()), stripRequestID(t, unknown.Body.Bytes()))
}

func stripRequestID(t *testing.T, raw []byte) string {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	delete(m, "requestID")

	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func TestGenerateOTP(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	rec := doJSON(a, http.MethodPost, "/api/generateOTP", "", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "email", out["type"])
	// The code itself must never appear in the response
	assert.NotContains(t, out, "otp")

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.EmailOTP)
	assert.Nil(t, user.MobileOTP)
	assert.NotNil(t, user.OTPGeneratedAt)
	assert.Len(t, *user.EmailOTP, 6)
}

func TestGenerateOTP_ByMobile(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	rec := doJSON(a, http.MethodPost, "/api/generateOTP", "", gin.H{"mobile_number": "555"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.MobileOTP)
	assert.Nil(t, user.EmailOTP)
}

func TestGenerateOTP_UnknownUser(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(a, http.MethodPost, "/api/generateOTP", "", gin.H{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyOTP(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	code := "123456"
	now := time.Now()
	u.SetOTP(model.SlotEmail, &code)
	u.OTPGeneratedAt = &now
	require.NoError(t, a.Users.Save(context.Background(), u))

	rec := doJSON(a, http.MethodPost, "/api/verifyOTP", "", gin.H{
		"email": "a@x.com",
		"otp":   code,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.NotEmpty(t, out["token"])

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, user.EmailOTP)
	assert.Equal(t, 1, user.LoginAttempts)
	assert.NotNil(t, user.LastLoginAt)

	// The code was consumed, replaying it reads as never generated
	rec = doJSON(a, http.MethodPost, "/api/verifyOTP", "", gin.H{
		"email": "a@x.com",
		"otp":   code,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP not generated")
}

func TestVerifyOTP_Mismatch(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	code := "123456"
	now := time.Now()
	u.SetOTP(model.SlotEmail, &code)
	u.OTPGeneratedAt = &now
	require.NoError(t, a.Users.Save(context.Background(), u))

	rec := doJSON(a, http.MethodPost, "/api/verifyOTP", "", gin.H{
		"email": "a@x.com",
		"otp":   "654321",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid OTP")
}

func TestVerifyOTP_Expired(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	code := "123456"
	stale := time.Now().Add(-time.Duration(a.Config.OTP.ExpiryMinutes+1) * time.Minute)
	u.SetOTP(model.SlotEmail, &code)
	u.OTPGeneratedAt = &stale
	require.NoError(t, a.Users.Save(context.Background(), u))

	rec := doJSON(a, http.MethodPost, "/api/verifyOTP", "", gin.H{
		"email": "a@x.com",
		"otp":   code,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "OTP expired")
}

func TestChangePassword(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	token, err := a.Tokens.Issue(u)
	require.NoError(t, err)

	rec := doJSON(a, http.MethodPost, "/api/change-password", token, gin.H{
		"oldPassword":     "secret1",
		"newPassword":     "secret2",
		"confirmPassword": "secret2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)

	ok, err := a.Hash.VerifyPasswd("secret2", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChangePassword_Reuse(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")
	before := u.PasswordHash

	token, err := a.Tokens.Issue(u)
	require.NoError(t, err)

	rec := doJSON(a, http.MethodPost, "/api/change-password", token, gin.H{
		"oldPassword":     "secret1",
		"newPassword":     "secret1",
		"confirmPassword": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Old password not allowed")

	user, err := a.Users.ByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, before, user.PasswordHash)
}

func TestChangePassword_WrongOld(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	token, err := a.Tokens.Issue(u)
	require.NoError(t, err)

	rec := doJSON(a, http.MethodPost, "/api/change-password", token, gin.H{
		"oldPassword":     "wrong",
		"newPassword":     "secret2",
		"confirmPassword": "secret2",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_NoToken(t *testing.T) {
	a := newTestAPI(t)

	rec := doJSON(a, http.MethodPost, "/api/change-password", "", gin.H{
		"oldPassword":     "secret1",
		"newPassword":     "secret2",
		"confirmPassword": "secret2",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyPassword(t *testing.T) {
	a := newTestAPI(t)
	seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	rec := doJSON(a, http.MethodPost, "/api/verify-password", "", gin.H{
		"email":    "a@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["verified"])

	rec = doJSON(a, http.MethodPost, "/api/verify-password", "", gin.H{
		"email":    "a@x.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["verified"])
}

func TestVerifyPassword_UnknownUser(t *testing.T) {
	a := newTestAPI(t)

	// Success-shaped answer, not a 404, so accounts can't be enumerated
	rec := doJSON(a, http.MethodPost, "/api/verify-password", "", gin.H{
		"email":    "ghost@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["verified"])
}

func TestUserFetch(t *testing.T) {
	a := newTestAPI(t)
	u := seedUser(t, a, "u1", "a@x.com", "555", "secret1")

	token, err := a.Tokens.Issue(u)
	require.NoError(t, err)

	rec := doJSON(a, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, "a@x.com", out["email"])
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.NotContains(t, out, "password_hash")
}

func TestAvatarServe(t *testing.T) {
	a := newTestAPI(t)

	body, ct := registerBody(t, defaultRegisterFields(), true)
	req := httptest.NewRequest(http.MethodPost, "/api/register", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	userID := decode(t, rec)["user_id"].(string)

	avatar := httptest.NewRecorder()
	a.Router.ServeHTTP(avatar, httptest.NewRequest(http.MethodGet, "/api/users/"+userID+"/avatar", nil))

	require.Equal(t, http.StatusOK, avatar.Code)
	assert.Equal(t, "image/png", avatar.Header().Get("Content-Type"))

	_, err := png.Decode(avatar.Body)
	assert.NoError(t, err)
}

func TestAvatarServe_UnknownUser(t *testing.T) {
	a := newTestAPI(t)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/ghost/avatar", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
