package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"promoledger/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("link abc: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{fmt.Errorf("%w: daily cap", domain.ErrBudgetExhausted), http.StatusConflict, "BUDGET_EXHAUSTED"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrInvalidConfig, http.StatusBadRequest, "INVALID_CONFIG"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			require := require.New(t)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tc.err)
			require.Equal(tc.status, w.Code)
			var body map[string]string
			require.NoError(json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(tc.code, body["code"])
			if tc.status == http.StatusInternalServerError {
				require.Equal("internal error", body["error"])
				require.Len(c.Errors, 1)
			} else {
				require.Equal(tc.err.Error(), body["error"])
			}
		})
	}
}
