package bundle

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphanumeric only: compose interpolates '$' in .env values.
const secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SecretLength is the length of every generated secret.
const SecretLength = 32

// Secrets renders the real environment file with freshly generated secrets.
func (b *Builder) Secrets() (File, error) {
	values := envValues{Generated: true}
	for _, dst := range []*string{
		&values.PostgresPassword,
		&values.N8NEncryptionKey,
		&values.N8NBasicAuthPassword,
		&values.NtfyAdminPassword,
		&values.FetcherAPIKey,
	} {
		secret, err := GenerateSecret(SecretLength)
		if err != nil {
			return File{}, err
		}
		*dst = secret
	}

	content, err := b.templates.Render(envTemplate, values)
	if err != nil {
		return File{}, err
	}
	return File{Path: SecretsPath, Content: content, Mode: 0600}, nil
}

// GenerateSecret returns a random alphanumeric string of length n.
func GenerateSecret(n int) (string, error) {
	buf := make([]byte, n)
	charsetLen := big.NewInt(int64(len(secretCharset)))

	for i := range buf {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate secret: %w", err)
		}
		buf[i] = secretCharset[idx.Int64()]
	}
	return string(buf), nil
}
