package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/raffles?"+rawQuery, nil)
	return c
}

func TestGetPaginationParams(t *testing.T) {
	params := GetPaginationParams(newTestContext("page=3&limit=5&sort=-name&q=spring"), 12)
	assert.Equal(t, PaginationParams{Page: 3, Limit: 5, Sort: "-name", Search: "spring"}, params)

	params = GetPaginationParams(newTestContext("page=abc&limit=1000"), 12)
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, 12, params.Limit)

	params = GetPaginationParams(newTestContext("search=draw"), 12)
	assert.Equal(t, "draw", params.Search)
}

func TestClampPage(t *testing.T) {
	params := PaginationParams{Page: 9, Limit: 12}
	params.ClampPage(25)
	assert.Equal(t, 3, params.Page)

	params = PaginationParams{Page: 2, Limit: 12}
	params.ClampPage(0)
	assert.Equal(t, 1, params.Page)

	params = PaginationParams{Page: 2, Limit: 12}
	params.ClampPage(24)
	assert.Equal(t, 2, params.Page)
}

func TestCreatePaginationResult(t *testing.T) {
	result := CreatePaginationResult([]int{1, 2}, 25, PaginationParams{Page: 1, Limit: 12})
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, int64(25), result.Total)
}

type slugRequest struct {
	Slug  string `validate:"omitempty,slug"`
	Phone string `validate:"omitempty,phone"`
	Name  string `validate:"required,max=5"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(&slugRequest{Slug: "spring-draw", Phone: "+58 412-555-0101", Name: "ok"}))

	err := ValidateStruct(&slugRequest{Slug: "Spring Draw", Phone: "call me", Name: ""})
	require.Error(t, err)

	fields := map[string]string{}
	for _, e := range GetValidationErrors(err) {
		fields[e.Field] = e.Tag
	}
	assert.Equal(t, map[string]string{"slug": "slug", "phone": "phone", "name": "required"}, fields)
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	SetJWTIssuer("raffle-test")

	token, err := GenerateJWT("operator-1", "Ana", "operator", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Subject)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, "raffle-test", claims.Issuer)

	_, err = ValidateJWT(token + "x")
	assert.Error(t, err)

	expired, err := GenerateJWT("operator-1", "Ana", "operator", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired)
	assert.Error(t, err)

	_, err = GenerateJWT("", "", "operator", time.Hour)
	assert.Error(t, err)
}

func TestGenerateRandomStringFrom(t *testing.T) {
	s, err := GenerateRandomStringFrom(UpperAlphanumericCharset, 8)
	require.NoError(t, err)
	assert.Len(t, s, 8)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(UpperAlphanumericCharset, r), "unexpected rune %q", r)
	}

	s, err = GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)
}
