package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// SealedSession is the payload sealed into a mobile session token.
// The sealed token references the server-side session without exposing it.
type SealedSession struct {
	DID       string `json:"did"`
	SessionID string `json:"sid"`
	ExpiresAt int64  `json:"exp"` // Unix timestamp
}

// SealSession creates an encrypted token containing session information.
// The token is AES-256-GCM encrypted with the key-encryption key and
// encoded as base64url.
//
// Token format: base64url(nonce || ciphertext || tag)
// - nonce: 12 bytes (GCM standard nonce size)
// - ciphertext: encrypted JSON payload
// - tag: 16 bytes (GCM authentication tag)
func SealSession(kek []byte, did, sessionID string, ttl time.Duration) (string, error) {
	if len(kek) != 32 {
		return "", fmt.Errorf("seal key must be 32 bytes, got %d", len(kek))
	}
	if did == "" {
		return "", fmt.Errorf("DID is required")
	}
	if sessionID == "" {
		return "", fmt.Errorf("session ID is required")
	}

	session := SealedSession{
		DID:       did,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM.Seal appends the ciphertext and tag to the nonce
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// UnsealSession decrypts and validates a sealed session token. Any
// single-byte modification of nonce, ciphertext, or tag fails the GCM
// authentication check, as does the wrong key.
func UnsealSession(kek []byte, token string) (*SealedSession, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("seal key must be 32 bytes, got %d", len(kek))
	}
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token encoding: %w", err)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("invalid token: too short")
	}

	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var session SealedSession
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.DID == "" {
		return nil, fmt.Errorf("invalid session: missing DID")
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("invalid session: missing session ID")
	}
	if session.ExpiresAt <= time.Now().Unix() {
		return nil, fmt.Errorf("token expired at %v", time.Unix(session.ExpiresAt, 0))
	}

	return &session, nil
}
