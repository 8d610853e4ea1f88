package s3

import (
	"time"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"

	"github.com/mediastash/mediastash/internal/circuit"
)

// Storage class constants accepted in configuration.
const (
	ClassStandard    = "STANDARD"
	ClassStandardIA  = "STANDARD_IA"
	ClassOneZoneIA   = "ONEZONE_IA"
	ClassGlacierIR   = "GLACIER_IR"
	ClassIntelligent = "INTELLIGENT_TIERING"
)

// Config represents S3 store configuration.
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PoolSize       int           `yaml:"pool_size"`

	// StorageClass selects the tier new objects are written to.
	StorageClass string `yaml:"storage_class"`

	// Optimized upload path via the cargoship transporter.
	EnableTransporter  bool  `yaml:"enable_transporter"`
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	MultipartChunkSize int64 `yaml:"multipart_chunk_size"`

	// Circuit breaker guarding the transport.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a configuration with sensible defaults. SDK-level
// retries are not configured here on purpose: the retry policy above the
// store is the single retry authority, and it needs to see raw error
// codes from single attempts.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:     10 * time.Second,
		RequestTimeout:     30 * time.Second,
		PoolSize:           8,
		StorageClass:       ClassStandard,
		EnableTransporter:  false,
		MultipartThreshold: 32 * 1024 * 1024,
		MultipartChunkSize: 16 * 1024 * 1024,
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		},
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaults.PoolSize
	}
	if c.StorageClass == "" {
		c.StorageClass = defaults.StorageClass
	}
	if c.MultipartThreshold <= 0 {
		c.MultipartThreshold = defaults.MultipartThreshold
	}
	if c.MultipartChunkSize <= 0 {
		c.MultipartChunkSize = defaults.MultipartChunkSize
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = defaults.Breaker.FailureThreshold
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = defaults.Breaker.Timeout
	}
}

func (c *Config) breakerConfig() circuit.Config {
	threshold := c.Breaker.FailureThreshold
	return circuit.Config{
		Timeout: c.Breaker.Timeout,
		ReadyToTrip: func(counts circuit.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
}

// storageClass converts a configured class name to the AWS SDK type.
func storageClass(class string) s3types.StorageClass {
	switch class {
	case ClassStandardIA:
		return s3types.StorageClassStandardIa
	case ClassOneZoneIA:
		return s3types.StorageClassOnezoneIa
	case ClassGlacierIR:
		return s3types.StorageClassGlacierIr
	case ClassIntelligent:
		return s3types.StorageClassIntelligentTiering
	default:
		return s3types.StorageClassStandard
	}
}

// transporterStorageClass converts a configured class name to the
// cargoship type. Glacier-IR maps to Glacier, the closest class the
// transporter supports.
func transporterStorageClass(class string) awsconfig.StorageClass {
	switch class {
	case ClassStandardIA:
		return awsconfig.StorageClassStandardIA
	case ClassOneZoneIA:
		return awsconfig.StorageClassOneZoneIA
	case ClassGlacierIR:
		return awsconfig.StorageClassGlacier
	case ClassIntelligent:
		return awsconfig.StorageClassIntelligentTiering
	default:
		return awsconfig.StorageClassStandard
	}
}
