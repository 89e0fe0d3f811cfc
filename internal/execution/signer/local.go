package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	EnvPrivateKey           = "INTENTS_PRIVATE_KEY"
	EnvPrivateKeyFile       = "INTENTS_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "INTENTS_KEYSTORE_PATH"
	EnvKeystorePassword     = "INTENTS_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "INTENTS_KEYSTORE_PASSWORD_FILE"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultKeyFile = "intents/key.hex"
)

// ErrNoKey means no key location was configured for the requested source.
var ErrNoKey = errors.New("no signing key configured")

// LocalSigner holds a wallet key in memory.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func (s *LocalSigner) Address() common.Address { return s.address }

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("local signer has no key")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// KeyConfig says where the wallet key lives. The first non-empty location in
// field order wins: raw hex, then a hex file, then an encrypted keystore.
type KeyConfig struct {
	Hex          string
	File         string
	Keystore     string
	Password     string
	PasswordFile string
}

// sourceFilters clear the locations a key source must not read.
var sourceFilters = map[string]func(*KeyConfig){
	KeySourceAuto: func(*KeyConfig) {},
	KeySourceEnv: func(c *KeyConfig) {
		*c = KeyConfig{Hex: c.Hex}
	},
	KeySourceFile: func(c *KeyConfig) {
		*c = KeyConfig{File: c.File}
	},
	KeySourceKeystore: func(c *KeyConfig) {
		c.Hex, c.File = "", ""
	},
}

// KeyConfigFromEnv reads the INTENTS_* key variables, falling back to
// $XDG_CONFIG_HOME/intents/key.hex when no key file is set.
func KeyConfigFromEnv(source string) (KeyConfig, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	filter, ok := sourceFilters[source]
	if !ok {
		return KeyConfig{}, fmt.Errorf("unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore)
	}
	cfg := KeyConfig{
		Hex:          getenv(EnvPrivateKey),
		File:         getenv(EnvPrivateKeyFile),
		Keystore:     getenv(EnvKeystorePath),
		Password:     getenv(EnvKeystorePassword),
		PasswordFile: getenv(EnvKeystorePasswordFile),
	}
	if cfg.File == "" {
		cfg.File = existingDefaultKeyFile()
	}
	filter(&cfg)
	return cfg, nil
}

// Load builds the wallet signer for a --key-source value.
func Load(source string) (*LocalSigner, error) {
	cfg, err := KeyConfigFromEnv(source)
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(cfg)
}

func NewLocalSigner(cfg KeyConfig) (*LocalSigner, error) {
	key, err := cfg.privateKey()
	if err != nil {
		return nil, err
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("invalid ECDSA public key")
	}
	return &LocalSigner{key: key, address: crypto.PubkeyToAddress(*pub)}, nil
}

func (c KeyConfig) privateKey() (*ecdsa.PrivateKey, error) {
	switch {
	case strings.TrimSpace(c.Hex) != "":
		return parseHexKey(c.Hex)
	case strings.TrimSpace(c.File) != "":
		buf, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		return parseHexKey(string(buf))
	case strings.TrimSpace(c.Keystore) != "":
		return c.decryptKeystore()
	default:
		return nil, fmt.Errorf("%w: set %s, %s or %s, or write %s", ErrNoKey, EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, defaultKeyPath())
	}
}

func (c KeyConfig) decryptKeystore() (*ecdsa.PrivateKey, error) {
	password := strings.TrimSpace(c.Password)
	if password == "" && strings.TrimSpace(c.PasswordFile) != "" {
		buf, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read keystore password file: %w", err)
		}
		password = strings.TrimSpace(string(buf))
	}
	if password == "" {
		return nil, fmt.Errorf("keystore %s needs %s or %s", c.Keystore, EnvKeystorePassword, EnvKeystorePasswordFile)
	}
	buf, err := os.ReadFile(c.Keystore)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(buf, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, errors.New("empty private key")
	}
	key, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func defaultKeyPath() string {
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, defaultKeyFile)
}

func existingDefaultKeyFile() string {
	path := defaultKeyPath()
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
