package auth

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TurnMatch/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalSign(t *testing.T, msg string) (address, signature string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	sig, err := crypto.Sign(crypto.Keccak256Hash([]byte(prefix)).Bytes(), key)
	require.NoError(t, err)
	// 钱包返回的 V 为 27/28
	sig[64] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x" + hex.EncodeToString(sig)
}

func TestRecoverAddress(t *testing.T) {
	addr, sig := personalSign(t, "hello")

	got, err := RecoverAddress("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	got, err = RecoverAddress("other", sig)
	require.NoError(t, err)
	assert.NotEqual(t, addr, got)

	_, err = RecoverAddress("hello", "0x1234")
	assert.ErrorIs(t, err, ErrBadSignature)
	_, err = RecoverAddress("hello", "zz")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestToken(t *testing.T) {
	secret := []byte("s")
	tok, err := IssueToken(secret, "0xAbC", time.Minute)
	require.NoError(t, err)

	addr, err := ParseToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)

	_, err = ParseToken([]byte("x"), tok)
	assert.Error(t, err)
}

func TestStores(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	for name, store := range map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(rdb),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveNonce(ctx, "n1", time.Minute))
			ok, err := store.ConsumeNonce(ctx, "n1")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = store.ConsumeNonce(ctx, "n1")
			require.NoError(t, err)
			assert.False(t, ok, "nonce is single use")

			ok, err = store.Authenticated(ctx, "0xAA")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.StartSession(ctx, "0xAA", time.Minute))
			ok, _ = store.Authenticated(ctx, "0xaa")
			assert.True(t, ok, "addresses are case-insensitive")

			require.NoError(t, store.EndSession(ctx, "0xAA"))
			ok, _ = store.Authenticated(ctx, "0xAA")
			assert.False(t, ok)
		})
	}
}

func TestRedisStore_SessionExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, store.StartSession(ctx, "0xAA", time.Second))
	mr.FastForward(2 * time.Second)
	ok, err := store.Authenticated(ctx, "0xAA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	h := NewHandler(store, []byte("secret"), time.Hour, utils.Discard())

	r := gin.New()
	r.GET("/auth/nonce", h.Nonce)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", func(c *gin.Context) { c.Set("address", c.Query("a")); c.Next() }, h.Logout)

	// 1. 取 nonce
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/nonce", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var nonceResp struct{ Nonce string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nonceResp))
	require.NotEmpty(t, nonceResp.Nonce)

	// 2. 签名登录
	addr, sig := personalSign(t, SignMessage(nonceResp.Nonce))
	body, _ := json.Marshal(LoginRequest{Address: addr, Signature: sig, Nonce: nonceResp.Nonce})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var loginResp struct{ JWT string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	sub, err := ParseToken([]byte("secret"), loginResp.JWT)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(addr), sub)

	ok, _ := store.Authenticated(context.Background(), addr)
	assert.True(t, ok)

	// 3. nonce 重放被拒绝
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 4. 登出
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout?a="+sub, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	ok, _ = store.Authenticated(context.Background(), addr)
	assert.False(t, ok)
}

func TestLogin_SignatureMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	h := NewHandler(store, []byte("secret"), time.Hour, utils.Discard())
	r := gin.New()
	r.POST("/auth/login", h.Login)

	require.NoError(t, store.SaveNonce(context.Background(), "abc", time.Minute))
	_, sig := personalSign(t, SignMessage("abc"))
	body, _ := json.Marshal(LoginRequest{Address: "0x0000000000000000000000000000000000000001", Signature: sig, Nonce: "abc"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
