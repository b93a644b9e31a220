package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"burnmail/backend/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	handler(c)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestStatusOf(t *testing.T) {
	cases := map[domain.ErrorCode]int{
		domain.CodeBadRequest:    400,
		domain.CodeUnauthorized:  401,
		domain.CodeForbidden:     403,
		domain.CodeNotFound:      404,
		domain.CodeConflict:      409,
		domain.CodeLimitExceeded: 429,
		domain.CodeRateLimited:   429,
		domain.CodeInternal:      500,
		domain.ErrorCode("WHAT"): 500,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusOf(code), string(code))
	}
}

func TestError(t *testing.T) {
	t.Run("业务错误原样返回", func(t *testing.T) {
		rec, env := serve(t, func(c *gin.Context) {
			Error(c, domain.BadRequest("输入验证失败", map[string][]string{"username": {"太短"}}), zap.NewNop())
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, domain.CodeBadRequest, env.Error.Code)
		assert.Equal(t, []string{"太短"}, env.Error.Details["username"])
	})

	t.Run("内部错误不泄露细节", func(t *testing.T) {
		rec, env := serve(t, func(c *gin.Context) {
			Error(c, errors.New("pq: relation users does not exist"), zap.NewNop())
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, domain.CodeInternal, env.Error.Code)
		assert.Equal(t, MsgInternalError, env.Error.Message)
		assert.NotContains(t, rec.Body.String(), "relation")
	})
}

func TestSuccess(t *testing.T) {
	rec, env := serve(t, func(c *gin.Context) { OK(c) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.JSONEq(t, `{"success":true,"data":{}}`, rec.Body.String())
}
