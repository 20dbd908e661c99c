// Package crypto encrypts the checkout customer ids stored on user
// profiles so the payment provider reference never sits in DynamoDB in
// the clear.
package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Encryptor defines the interface for encryption and decryption.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// KMSEncryptor implements Encryptor using AWS KMS. Ciphertexts are
// base64 encoded for storage in string attributes.
type KMSEncryptor struct {
	client *kms.Client
	keyID  string
}

// NewKMSService creates a KMS-backed Encryptor. keyID can be a key ID,
// key ARN, or alias name (e.g., "alias/webnest-customer-key").
func NewKMSService(client *kms.Client, keyID string) *KMSEncryptor {
	return &KMSEncryptor{
		client: client,
		keyID:  keyID,
	}
}

func (s *KMSEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	result, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

func (s *KMSEncryptor) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	result, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: decoded,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %w", err)
	}
	return string(result.Plaintext), nil
}
