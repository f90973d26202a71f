package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Ошибки шифрования
var (
	ErrInvalidKeyLength   = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed возвращается когда ciphertext был зашифрован другим
	// ключом (после смены ENCRYPTION_KEY) или повреждён. Этот случай должен
	// быть различим: лечится только повторным вводом ключей клиентом.
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// Cipher шифрует и расшифровывает секреты (API ключи) с помощью AES-256-GCM.
//
// Ключ задаётся один раз при старте процесса и передаётся явно (dependency
// injection), а не через глобальную переменную - чтобы ротацию ключа можно
// было добавить позже без переписывания вызывающего кода.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher создает Cipher из 32-байтового ключа
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{gcm: gcm}, nil
}

// Encrypt шифрует plaintext и возвращает base64-encoded строку
// Формат: base64(nonce || ciphertext || tag)
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	// Генерируем случайный nonce
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// GCM добавляет аутентификационный тег автоматически
	ciphertext := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	// Кодируем в base64 для безопасного хранения в БД
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt расшифровывает base64-encoded ciphertext
func (c *Cipher) Decrypt(ciphertextBase64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertextData := ciphertext[:nonceSize], ciphertext[nonceSize:]

	// Расшифровываем и проверяем аутентификацию
	plaintext, err := c.gcm.Open(nil, nonce, ciphertextData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey генерирует криптографически стойкий случайный ключ (32 байта для AES-256)
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
