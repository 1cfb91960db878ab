// Package config loads the signer configuration through viper. Values come
// from a YAML or TOML file with SIGNER_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/luxfi/signer/pkg/backup"
	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/common/backoff"
	"github.com/luxfi/signer/pkg/common/pathutil"
	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/types"
)

const (
	EnvPrefix     = "SIGNER"
	DefaultEngine = "frost"
)

var ErrInvalidConfig = errors.New("config: invalid")

type SignerEntry struct {
	PublicKey string   `mapstructure:"public_key" json:"public_key"`
	KeyIDs    []uint32 `mapstructure:"key_ids" json:"key_ids"`
}

type StackerDBConfig struct {
	MinersContract  string        `mapstructure:"miners_contract"`
	SignersContract string        `mapstructure:"signers_contract"`
	FlushTimeout    time.Duration `mapstructure:"flush_timeout"`
}

type NATSConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	// EncryptionKey is hex in the file.
	EncryptionKey []byte        `mapstructure:"encryption_key"`
	BackupDir     string        `mapstructure:"backup_dir"`
	BackupPeriod  time.Duration `mapstructure:"backup_period"`

	S3 backup.S3Config `mapstructure:"s3"`
}

type ConsulConfig struct {
	Address string `mapstructure:"address"`
	Prefix  string `mapstructure:"prefix"`
}

type Config struct {
	Environment       string          `mapstructure:"environment"`
	NodeHost          string          `mapstructure:"node_host"`
	Endpoint          string          `mapstructure:"endpoint"`
	Network           string          `mapstructure:"network"`
	SignerID          uint32          `mapstructure:"signer_id"`
	MessagePrivateKey string          `mapstructure:"message_private_key"`
	Signers           []SignerEntry   `mapstructure:"signers"`
	StackerDB         StackerDBConfig `mapstructure:"stackerdb"`
	NATS              NATSConfig      `mapstructure:"nats"`
	Engine            string          `mapstructure:"engine"`

	// MessagePrivateKeyFile is a sealed key the CLI opens at startup
	// when no plain key is configured.
	MessagePrivateKeyFile string `mapstructure:"message_private_key_file"`

	EventTimeout     time.Duration `mapstructure:"event_timeout"`
	DkgPublicTimeout time.Duration `mapstructure:"dkg_public_timeout"`
	DkgEndTimeout    time.Duration `mapstructure:"dkg_end_timeout"`
	NonceTimeout     time.Duration `mapstructure:"nonce_timeout"`
	SignTimeout      time.Duration `mapstructure:"sign_timeout"`

	InitRetry    backoff.Policy `mapstructure:"init_retry"`
	CommandRetry backoff.Policy `mapstructure:"command_retry"`
	SendRetry    backoff.Policy `mapstructure:"send_retry"`

	Archive ArchiveConfig `mapstructure:"archive"`
	Consul  ConsulConfig  `mapstructure:"consul"`
}

// SetDefaults registers the default value of every optional setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("network", string(types.NetworkMocknet))
	v.SetDefault("engine", DefaultEngine)
	v.SetDefault("event_timeout", 50*time.Millisecond)
	v.SetDefault("stackerdb.flush_timeout", 2*time.Second)
	v.SetDefault("archive.backup_period", backup.DefaultPeriod)
	v.SetDefault("archive.s3.use_ssl", true)
	v.SetDefault("consul.prefix", "signer_committee/")
}

// InitViperConfig prepares the global viper instance. An empty path looks
// for config.yaml in the working directory.
func InitViperConfig(path string) error {
	prepare(viper.GetViper())
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read: %w", err)
	}
	return nil
}

func prepare(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the global viper settings.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads the settings on v without validating them. Offline tools
// that only touch the archive use it with ValidateArchive.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			hexToBytesHook(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func hexToBytesHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]byte(nil)) {
			return data, nil
		}
		return encoding.DecodeHex(data.(string))
	}
}

func (c *Config) Validate() error {
	if c.NodeHost == "" {
		return fmt.Errorf("%w: node_host is required", ErrInvalidConfig)
	}
	if !types.IsNetworkSupported(c.Network) {
		return fmt.Errorf("%w: unsupported network %q", ErrInvalidConfig, c.Network)
	}
	if c.StackerDB.MinersContract == "" || c.StackerDB.SignersContract == "" {
		return fmt.Errorf("%w: both stackerdb contracts are required", ErrInvalidConfig)
	}
	if c.StackerDB.MinersContract == c.StackerDB.SignersContract {
		return fmt.Errorf("%w: miners and signers contracts must differ", ErrInvalidConfig)
	}
	if c.EventTimeout <= 0 {
		return fmt.Errorf("%w: event_timeout must be positive", ErrInvalidConfig)
	}
	if _, err := c.PrivateKey(); err != nil {
		return fmt.Errorf("%w: message_private_key: %v", ErrInvalidConfig, err)
	}
	keys, err := c.PublicKeySet()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := keys.PublicKey(c.SignerID); err != nil {
		return fmt.Errorf("%w: signer_id %d is not in the committee", ErrInvalidConfig, c.SignerID)
	}
	return c.ValidateArchive()
}

// ValidateArchive checks the archive block. A disabled archive is valid.
func (c *Config) ValidateArchive() error {
	if c.Archive.Enabled {
		if c.Archive.Path == "" {
			return fmt.Errorf("%w: archive.path is required", ErrInvalidConfig)
		}
		if err := pathutil.ValidateFilePath(c.Archive.Path); err != nil {
			return fmt.Errorf("%w: archive.path: %v", ErrInvalidConfig, err)
		}
		if c.Archive.S3.Enabled() && len(c.Archive.EncryptionKey) == 0 {
			return fmt.Errorf("%w: archive.s3 needs archive.encryption_key", ErrInvalidConfig)
		}
		switch len(c.Archive.EncryptionKey) {
		case 0, 16, 24, 32:
		default:
			return fmt.Errorf("%w: archive.encryption_key must be 16, 24 or 32 bytes", ErrInvalidConfig)
		}
	}
	return nil
}

// PrivateKey parses the key this signer signs its packets with.
func (c *Config) PrivateKey() (*secp256k1.PrivateKey, error) {
	return encoding.DecodeS256PrivKeyHex(c.MessagePrivateKey)
}

// PublicKeySet builds the committee. A signer's id is its position in the
// signers list. Entries without key_ids get the next sequential ids,
// starting at 1.
func (c *Config) PublicKeySet() (committee.PublicKeySet, error) {
	signers := make(map[uint32]*secp256k1.PublicKey, len(c.Signers))
	keyIDs := make(map[uint32][]uint32, len(c.Signers))
	next := uint32(1)
	for i, entry := range c.Signers {
		id := uint32(i)
		pub, err := encoding.DecodeS256PubKeyHex(entry.PublicKey)
		if err != nil {
			return committee.PublicKeySet{}, fmt.Errorf("signer %d: %w", id, err)
		}
		signers[id] = pub
		if len(entry.KeyIDs) == 0 {
			keyIDs[id] = []uint32{next}
			next++
			continue
		}
		keyIDs[id] = entry.KeyIDs
		for _, k := range entry.KeyIDs {
			if k >= next {
				next = k + 1
			}
		}
	}
	return committee.NewPublicKeySet(signers, keyIDs)
}

func (c *Config) ThresholdConfig() (committee.ThresholdConfig, error) {
	keys, err := c.PublicKeySet()
	if err != nil {
		return committee.ThresholdConfig{}, err
	}
	return keys.ThresholdConfig(), nil
}

// KeyIDs returns the key share ids owned by this signer.
func (c *Config) KeyIDs() ([]uint32, error) {
	keys, err := c.PublicKeySet()
	if err != nil {
		return nil, err
	}
	return keys.SignerKeyIDs[c.SignerID], nil
}
