package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

var ErrBadSignature = errors.New("signature verify failed")

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

type Handler struct {
	store  Store
	secret []byte
	ttl    time.Duration
	log    *log.Logger
}

// NewHandler 工厂方法：ttl 同时作为 JWT 与平台会话的有效期
func NewHandler(store Store, secret []byte, ttl time.Duration, logger *log.Logger) *Handler {
	return &Handler{store: store, secret: secret, ttl: ttl, log: logger}
}

// SignMessage is the text a wallet signs for nonce.
func SignMessage(nonce string) string {
	return "Sign this message to authenticate with TurnMatch. Nonce: " + nonce
}

// RecoverAddress returns the address that produced a personal_sign
// signature over msg.
func RecoverAddress(msg, signature string) (string, error) {
	// 与 MetaMask personal_sign 完全一致的消息
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	hash := crypto.Keccak256Hash([]byte(prefix))

	sig := strings.TrimPrefix(signature, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	// 修正 V 值
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}
	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return "", ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	ctx := c.Request.Context()

	ok, err := h.store.ConsumeNonce(ctx, req.Nonce)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce lookup failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := RecoverAddress(SignMessage(req.Nonce), req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.EqualFold(recovered, req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	address := strings.ToLower(recovered)
	token, err := IssueToken(h.secret, address, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	if err := h.store.StartSession(ctx, address, h.ttl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session start failed"})
		return
	}
	h.log.Info("player signed in", "address", address)

	c.JSON(http.StatusOK, gin.H{"jwt": token})
}

// POST /auth/logout（需 JWT）结束平台会话；已签发的 JWT 不再能发起匹配
func (h *Handler) Logout(c *gin.Context) {
	address := c.GetString("address")
	if err := h.store.EndSession(c.Request.Context(), address); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session end failed"})
		return
	}
	h.log.Info("player signed out", "address", address)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
