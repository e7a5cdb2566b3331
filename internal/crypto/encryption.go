package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	KeySize = 32 // 16 signing bytes + 16 encryption bytes
	IVSize  = 16 // 128-bit IV for AES

	// tokenVersion is the leading byte of every token.
	tokenVersion = 0x80

	// tokenOverhead is version + timestamp + IV + HMAC.
	tokenOverhead = 1 + 8 + IVSize + sha256.Size

	// maxClockSkew tolerates tokens minted slightly in the future by a
	// drifting peer clock.
	maxClockSkew = 60 * time.Second
)

var (
	// ErrInvalidKey reports a key that is not 32 url-safe base64 bytes.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrDecryptionFailed covers every authentication, format, and expiry
	// failure on decrypt. Callers must not learn which check rejected the
	// token.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// GenerateKey generates a random 256-bit key, url-safe base64 encoded.
// The first half signs, the second half encrypts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// GenerateIV generates a random 128-bit initialization vector.
func GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// decodeKey splits an encoded key into signing and encryption halves.
func decodeKey(key string) (signKey, encKey []byte, err error) {
	raw, err := base64.URLEncoding.DecodeString(key)
	if err != nil || len(raw) != KeySize {
		return nil, nil, ErrInvalidKey
	}
	return raw[:16], raw[16:], nil
}

// Encrypt seals plaintext into a self-contained token:
// url-safe base64 of version || big-endian unix time || IV ||
// AES-128-CBC ciphertext || HMAC-SHA256 over everything preceding it.
func Encrypt(plaintext []byte, key string) ([]byte, error) {
	signKey, encKey, err := decodeKey(key)
	if err != nil {
		return nil, err
	}

	iv, err := GenerateIV()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	body := make([]byte, 0, tokenOverhead+len(padded))
	body = append(body, tokenVersion)
	body = binary.BigEndian.AppendUint64(body, uint64(time.Now().Unix()))
	body = append(body, iv...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	body = append(body, ciphertext...)

	mac := hmac.New(sha256.New, signKey)
	mac.Write(body)
	body = mac.Sum(body)

	token := make([]byte, base64.URLEncoding.EncodedLen(len(body)))
	base64.URLEncoding.Encode(token, body)
	return token, nil
}

// Decrypt opens a token produced by Encrypt. A positive ttl additionally
// rejects tokens older than ttl. Every failure surfaces as
// ErrDecryptionFailed.
func Decrypt(token []byte, key string, ttl time.Duration) ([]byte, error) {
	signKey, encKey, err := decodeKey(key)
	if err != nil {
		return nil, err
	}

	body := make([]byte, base64.URLEncoding.DecodedLen(len(token)))
	n, err := base64.URLEncoding.Decode(body, token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token", ErrDecryptionFailed)
	}
	body = body[:n]

	if len(body) < tokenOverhead || body[0] != tokenVersion {
		return nil, fmt.Errorf("%w: malformed token", ErrDecryptionFailed)
	}

	signed := body[:len(body)-sha256.Size]
	mac := hmac.New(sha256.New, signKey)
	mac.Write(signed)
	if subtle.ConstantTimeCompare(mac.Sum(nil), body[len(body)-sha256.Size:]) != 1 {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}

	minted := time.Unix(int64(binary.BigEndian.Uint64(body[1:9])), 0)
	now := time.Now()
	if minted.After(now.Add(maxClockSkew)) {
		return nil, fmt.Errorf("%w: token from the future", ErrDecryptionFailed)
	}
	if ttl > 0 && now.Sub(minted) > ttl {
		return nil, fmt.Errorf("%w: token expired", ErrDecryptionFailed)
	}

	iv := body[9 : 9+IVSize]
	ciphertext := signed[9+IVSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed token", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// pkcs7Pad applies PKCS7 padding to the data
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padText := make([]byte, padding)
	for i := range padText {
		padText[i] = byte(padding)
	}
	return append(data, padText...)
}

// pkcs7Unpad removes PKCS7 padding from the data
// Verifies that all padding bytes have the correct value for defense-in-depth
func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 {
		return nil, fmt.Errorf("invalid padding: empty data")
	}
	padding := int(data[length-1])
	if padding > length || padding > aes.BlockSize || padding == 0 {
		return nil, fmt.Errorf("invalid padding size: %d", padding)
	}
	// Verify all padding bytes have the correct value
	for i := 0; i < padding; i++ {
		if data[length-1-i] != byte(padding) {
			return nil, fmt.Errorf("invalid padding byte at position %d: expected %d, got %d", i, padding, data[length-1-i])
		}
	}
	return data[:length-padding], nil
}
