package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/util"
)

var ErrDecryptionFailed = errors.New("decryption failed")

// KeyManager resolves the JWT signing secret. In production the secret
// ships KMS-encrypted in JWT_ENCRYPTED_SECRET and is decrypted once at
// startup; in development the plain JWT_SECRET is used as-is.
type KeyManager struct {
	kmsClient *kms.Client
	config    *config.Config

	once   sync.Once
	secret []byte
	err    error
}

func NewKeyManager(cfg *config.Config, kmsClient *kms.Client) *KeyManager {
	return &KeyManager{
		kmsClient: kmsClient,
		config:    cfg,
	}
}

// SigningSecret returns the resolved secret. The KMS round trip happens
// at most once; later calls return the cached value.
func (km *KeyManager) SigningSecret(ctx context.Context) ([]byte, error) {
	km.once.Do(func() {
		km.secret, km.err = km.resolve(ctx)
	})
	return km.secret, km.err
}

func (km *KeyManager) resolve(ctx context.Context) ([]byte, error) {
	if !km.config.KMS.Enabled || km.config.JWT.EncryptedSecret == "" {
		if km.config.JWT.Secret == "" {
			return nil, errors.New("JWT_SECRET is not set")
		}
		util.Info("Using plain JWT signing secret (KMS disabled)")
		return []byte(km.config.JWT.Secret), nil
	}

	ciphertextBlob, err := base64.StdEncoding.DecodeString(km.config.JWT.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid encrypted secret format", ErrDecryptionFailed)
	}

	result, err := km.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertextBlob,
	})
	if err != nil {
		util.Error("Failed to decrypt JWT signing secret", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	util.Info("JWT signing secret decrypted via KMS",
		zap.String("key_id", km.config.KMS.KeyID))

	return result.Plaintext, nil
}
