package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func signedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Signature(secret))
	router.POST("/cb", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestSignature(t *testing.T) {
	const secret = "callback-secret"
	body := []byte(`{"message_id":"a1"}`)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{
			name:      "valid signature",
			signature: Sign(secret, body),
			want:      http.StatusOK,
		},
		{
			name:      "wrong secret",
			signature: Sign("other-secret", body),
			want:      http.StatusUnauthorized,
		},
		{
			name:      "missing header",
			signature: "",
			want:      http.StatusUnauthorized,
		},
		{
			name:      "garbage signature",
			signature: "deadbeef",
			want:      http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := signedRouter(secret)

			req := httptest.NewRequest(http.MethodPost, "/cb", bytes.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSignatureTamperedBody(t *testing.T) {
	const secret = "callback-secret"
	signature := Sign(secret, []byte(`{"message_id":"a1"}`))

	router := signedRouter(secret)
	req := httptest.NewRequest(http.MethodPost, "/cb", bytes.NewReader([]byte(`{"message_id":"a2"}`)))
	req.Header.Set(SignatureHeader, signature)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
