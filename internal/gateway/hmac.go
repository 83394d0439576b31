package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"
)

func sign(newHash func() hash.Hash, key string, data []byte) string {
	mac := hmac.New(newHash, []byte(key))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSHA256 returns the lower-case hex HMAC-SHA256 of data.
func SignSHA256(key string, data []byte) string {
	return sign(sha256.New, key, data)
}

// SignSHA512 returns the lower-case hex HMAC-SHA512 of data.
func SignSHA512(key string, data []byte) string {
	return sign(sha512.New, key, data)
}

// verify compares a hex MAC in constant time. An empty key never verifies.
func verify(newHash func() hash.Hash, key string, data []byte, mac string) bool {
	if key == "" || mac == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(mac))
	if err != nil {
		return false
	}
	h := hmac.New(newHash, []byte(key))
	h.Write(data)
	return hmac.Equal(h.Sum(nil), got)
}

func verifySHA256(key string, data []byte, mac string) bool {
	return verify(sha256.New, key, data, mac)
}

func verifySHA512(key string, data []byte, mac string) bool {
	return verify(sha512.New, key, data, mac)
}
