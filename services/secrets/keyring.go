package secrets

import (
	"encoding/json"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"

	"github.com/mailroomhq/mailroom/config"
	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/models"
)

const (
	tokenKeyPrefix    = "tokens/"
	passwordKeyPrefix = "password/"
	// legacyTokenKey is the single-account slot used before accounts were
	// keyed individually. Kept readable so existing installs keep working.
	legacyTokenKey = "tokens"
)

type keyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens the OS keyring and returns a credential store backed
// by it. The file backend is the fallback for headless environments.
func NewKeyringStore(cfg *config.KeyringConfig) (interfaces.CredentialStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}
	return &keyringStore{ring: ring}, nil
}

func (s *keyringStore) GetTokens(accountID string) (*models.TokenSet, error) {
	return s.getTokenSet(tokenKeyPrefix + accountID)
}

func (s *keyringStore) GetLegacyTokens() (*models.TokenSet, error) {
	return s.getTokenSet(legacyTokenKey)
}

func (s *keyringStore) PutTokens(accountID string, tokens *models.TokenSet) error {
	return s.putTokenSet(tokenKeyPrefix+accountID, tokens)
}

func (s *keyringStore) PutLegacyTokens(tokens *models.TokenSet) error {
	return s.putTokenSet(legacyTokenKey, tokens)
}

func (s *keyringStore) GetPassword(accountID string) (string, error) {
	item, err := s.ring.Get(passwordKeyPrefix + accountID)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", errors.Wrapf(er.ErrUnauthenticated, "account %s", accountID)
		}
		return "", errors.Wrap(err, "reading password from keyring")
	}
	return string(item.Data), nil
}

func (s *keyringStore) PutPassword(accountID string, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:  passwordKeyPrefix + accountID,
		Data: []byte(password),
	})
	if err != nil {
		return errors.Wrap(err, "storing password in keyring")
	}
	return nil
}

func (s *keyringStore) getTokenSet(key string) (*models.TokenSet, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, errors.Wrapf(er.ErrUnauthenticated, "no tokens under key %s", key)
		}
		return nil, errors.Wrap(err, "reading tokens from keyring")
	}

	var tokens models.TokenSet
	if err := json.Unmarshal(item.Data, &tokens); err != nil {
		return nil, errors.Wrap(err, "decoding stored tokens")
	}
	return &tokens, nil
}

func (s *keyringStore) putTokenSet(key string, tokens *models.TokenSet) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return errors.Wrap(err, "encoding tokens")
	}

	err = s.ring.Set(keyring.Item{
		Key:  key,
		Data: data,
	})
	if err != nil {
		return errors.Wrap(err, "storing tokens in keyring")
	}
	return nil
}
