package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/pkg/ctxutil"
)

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext(), AttachActor())

	var gotReq, gotActor string
	r.GET("/x", func(c *gin.Context) {
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			gotReq = td.RequestID
		}
		gotActor = ctxutil.Actor(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderActor, "lecturer-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "req-1", gotReq)
	require.Equal(t, "lecturer-7", gotActor)
	require.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
	require.NotEmpty(t, rec.Header().Get(HeaderTraceID))
}

func TestAttachTraceContextGeneratesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	require.NotEmpty(t, rec.Header().Get(HeaderTraceID))
}
