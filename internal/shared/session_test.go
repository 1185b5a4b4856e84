package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "atelier_session", "secret", time.Hour, false), mr
}

func requestWithCookie(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[len(cookies)-1]
}

func TestSessionIdentityRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(nil))
	require.NoError(t, err)
	sess.SetIdentity(Identity{UserID: "user_1", Email: "ana@example.com", Role: "designer"})

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := sessionCookie(t, rec)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, mr.Exists("session:"+sess.ID))

	loaded, err := sm.Load(ctx, requestWithCookie(cookie))
	require.NoError(t, err)
	assert.Equal(t, "designer", loaded.Identity().Role)
	assert.Equal(t, "user_1", loaded.User())
}

func TestUnknownSessionIDIsNotAdopted(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), requestWithCookie(&http.Cookie{Name: "atelier_session", Value: "forged"}))
	require.NoError(t, err)
	assert.NotEqual(t, "forged", sess.ID)
	assert.Empty(t, sess.User())
}

func TestRotateDropsPreviousRecord(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	loaded, err := sm.Load(ctx, requestWithCookie(&http.Cookie{Name: "atelier_session", Value: oldID}))
	require.NoError(t, err)
	sm.Rotate(loaded)
	loaded.SetIdentity(Identity{UserID: "user_2"})
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("session:"+oldID))
	assert.True(t, mr.Exists("session:"+loaded.ID))
}

func TestDestroyExpiresCookie(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	assert.False(t, mr.Exists("session:"+sess.ID))
}

func TestFlashesPopInOrder(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), requestWithCookie(nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "info", Message: "one"})
	sess.AddFlash(FlashMessage{Kind: "info", Message: "two"})
	assert.Equal(t, "one", sess.PopFlash().Message)
	assert.Equal(t, "two", sess.PopFlash().Message)
	assert.Nil(t, sess.PopFlash())
}

func TestCSRFTokens(t *testing.T) {
	sm, _ := newTestManager(t)
	m := NewCSRFManager("csrf-secret")
	sess, err := sm.Load(context.Background(), requestWithCookie(nil))
	require.NoError(t, err)

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(sess, token))
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(sess, "nope"), ErrCSRFTokenMismatch)

	_, err = m.EnsureToken(nil)
	assert.ErrorIs(t, err, ErrNoSession)
}
