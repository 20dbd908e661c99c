package crypto

import (
	"context"
	"strings"
)

// MockEncryptor implements Encryptor for local development and tests
// (no KMS required). It prefixes values so tests can tell an encrypted
// field from a plaintext one.
type MockEncryptor struct{}

func NewMockEncryptor() *MockEncryptor {
	return &MockEncryptor{}
}

func (m *MockEncryptor) Encrypt(_ context.Context, plaintext string) (string, error) {
	return "mock:" + plaintext, nil
}

func (m *MockEncryptor) Decrypt(_ context.Context, ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "mock:"), nil
}
