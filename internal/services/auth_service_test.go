package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newAuthFixture(t *testing.T) (*AuthService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	SetAuthDefaults()
	viper.Set("jwt.secret_key", "test-secret")

	membership := NewMembershipService(db, testFees())
	service := NewAuthService(db, nil, membership)
	return service, mock, func() { db.Close() }
}

func TestHashAndVerifyPassword(t *testing.T) {
	SetAuthDefaults()

	hashed, err := hashPassword("s3cret-pass")
	assert.NoError(t, err)
	assert.Contains(t, hashed, "$")

	assert.True(t, verifyPassword("s3cret-pass", hashed))
	assert.False(t, verifyPassword("wrong-pass", hashed))
	assert.False(t, verifyPassword("s3cret-pass", "not-a-hash"))
}

func TestHashPassword_SaltsEachCall(t *testing.T) {
	SetAuthDefaults()

	first, err := hashPassword("same-password")
	assert.NoError(t, err)
	second, err := hashPassword("same-password")
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestGenerateJWT_RoundTripsThroughValidation(t *testing.T) {
	SetAuthDefaults()
	viper.Set("jwt.secret_key", "test-secret")

	token, err := generateJWT(7, models.RoleAccountant, true)
	assert.NoError(t, err)

	claims, err := middleware.ValidateToken(httptest.NewRequest(http.MethodGet, "/", nil).Context(), token)
	assert.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, models.RoleAccountant, claims.Role)
	assert.True(t, claims.Superuser)
}

func TestRegister_CreatesUserAndProfileInOneTransaction(t *testing.T) {
	service, mock, closeDB := newAuthFixture(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("asha", "asha@example.com", sqlmock.AnyArg(),
			"Asha", "Mushi", "+255712345678", models.RoleMember).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	// profile does not exist yet; the service creates it and re-locks
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "control_number", "control_number_created", "last_payment_date", "expiry_date"}))
	mock.ExpectExec("INSERT INTO member_profiles").
		WithArgs(7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(
			[]string{"user_id", "control_number", "control_number_created", "last_payment_date", "expiry_date"}).
			AddRow(7, "ONEPLUS-0000000001", time.Now(), nil, nil))
	mock.ExpectCommit()

	body := `{"username":"asha","email":"Asha@Example.com","password":"password123",
		"FirstName":"Asha","LastName":"Mushi","PhoneNumber":"+255712345678"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	service.Register(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ONEPLUS-0000000001", resp.ControlNumber)
	assert.Equal(t, "asha@example.com", resp.User.Email)
	assert.Equal(t, models.RoleMember, resp.User.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_RejectsInvalidPayload(t *testing.T) {
	service, mock, closeDB := newAuthFixture(t)
	defer closeDB()

	body := `{"username":"a","email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	service.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_Succeeds(t *testing.T) {
	service, mock, closeDB := newAuthFixture(t)
	defer closeDB()

	hashed, err := hashPassword("password123")
	assert.NoError(t, err)

	mock.ExpectQuery("FROM users").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "email", "first_name", "last_name", "role", "is_superuser", "password"}).
			AddRow(7, "asha", "asha@example.com", "Asha", "Mushi", models.RoleMember, false, hashed))
	mock.ExpectQuery("SELECT control_number FROM member_profiles").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"control_number"}).AddRow("ONEPLUS-0000000001"))

	body := `{"email":"asha@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	service.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ONEPLUS-0000000001", resp.ControlNumber)

	claims, err := middleware.ValidateToken(req.Context(), resp.Token)
	assert.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	service, mock, closeDB := newAuthFixture(t)
	defer closeDB()

	hashed, err := hashPassword("password123")
	assert.NoError(t, err)

	mock.ExpectQuery("FROM users").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "email", "first_name", "last_name", "role", "is_superuser", "password"}).
			AddRow(7, "asha", "asha@example.com", "Asha", "Mushi", models.RoleMember, false, hashed))

	body := `{"email":"asha@example.com","password":"wrong-pass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	service.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogout_BlacklistsToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	SetAuthDefaults()
	redisClient, redisMock := redismock.NewClientMock()
	membership := NewMembershipService(db, testFees())
	service := NewAuthService(db, redisClient, membership)

	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	redisMock.ExpectSet("blacklist:some-token", "1", expiry).SetVal("OK")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	service.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, mock.ExpectationsWereMet())
}
