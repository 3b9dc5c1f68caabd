package device

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Configuration keys shared by the config file, environment and flags.
const (
	KeyEndian         = "endian"
	KeyEraseBlockSize = "erase_block_size"
	KeyOffset         = "offset"
	KeyLength         = "length"
	KeyWorkers        = "workers"
	KeyMaxFileSize    = "max_file_size"
	KeyMaxTotalSize   = "max_total_size"
	KeyRecoverOrphans = "recover_orphans"
	KeyOrphanDir      = "orphan_dir"
	KeyLogLevel       = "log.level"
)

// ImageConfig holds configuration for reading and extracting an image
type ImageConfig struct {
	// Endian is auto, little or big.
	Endian string `mapstructure:"endian"`

	// EraseBlockSize is a byte size such as "128KiB", or auto.
	EraseBlockSize string `mapstructure:"erase_block_size"`

	// Offset and Length select a window of the input file. Length 0 reads
	// to the end.
	Offset int64 `mapstructure:"offset"`
	Length int64 `mapstructure:"length"`

	Workers        int    `mapstructure:"workers"`
	MaxFileSize    string `mapstructure:"max_file_size"`
	MaxTotalSize   string `mapstructure:"max_total_size"`
	RecoverOrphans bool   `mapstructure:"recover_orphans"`
	OrphanDir      string `mapstructure:"orphan_dir"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEndian, "auto")
	v.SetDefault(KeyEraseBlockSize, "auto")
	v.SetDefault(KeyOffset, 0)
	v.SetDefault(KeyLength, 0)
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyMaxFileSize, "1GiB")
	v.SetDefault(KeyMaxTotalSize, "4GiB")
	v.SetDefault(KeyRecoverOrphans, true)
	v.SetDefault(KeyOrphanDir, "lost+found")
	v.SetDefault(KeyLogLevel, "info")
}

// LoadImageConfig loads image configuration using Viper
func LoadImageConfig() (*ImageConfig, error) {
	return LoadImageConfigFile("")
}

// LoadImageConfigFile loads image configuration from cfgFile, or from the
// standard search paths when cfgFile is empty
func LoadImageConfigFile(cfgFile string) (*ImageConfig, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("jffs2-config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/.jffs2")
		viper.AddConfigPath("/etc/jffs2")
	}

	SetDefaults(viper.GetViper())

	// Allow environment variables, JFFS2_LOG_LEVEL for log.level
	viper.SetEnvPrefix("JFFS2")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return UnmarshalImageConfig(viper.GetViper())
}

// UnmarshalImageConfig decodes and validates the configuration held by v.
func UnmarshalImageConfig(v *viper.Viper) (*ImageConfig, error) {
	var config ImageConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every field that can be checked without the image.
func (c *ImageConfig) Validate() error {
	if _, err := c.ByteOrder(); err != nil {
		return err
	}
	ebs, err := c.EraseBlockBytes()
	if err != nil {
		return err
	}
	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}
	if _, err := c.MaxTotalSizeBytes(); err != nil {
		return err
	}
	if c.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %d", c.Offset)
	}
	// Erase block boundaries are computed from the start of the window.
	if ebs > 0 && c.Offset%ebs != 0 {
		return fmt.Errorf("offset 0x%x is not a multiple of erase_block_size %s", c.Offset, humanize.IBytes(uint64(ebs)))
	}
	if c.Length < 0 {
		return fmt.Errorf("length must not be negative, got %d", c.Length)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if strings.Contains(c.OrphanDir, "/") {
		return fmt.Errorf("orphan_dir must be a single path component, got %q", c.OrphanDir)
	}
	return nil
}

// ByteOrder returns the configured byte order, or nil for auto.
func (c *ImageConfig) ByteOrder() (binary.ByteOrder, error) {
	switch strings.ToLower(c.Endian) {
	case "", "auto":
		return nil, nil
	case "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("invalid endian %q: expected auto, little or big", c.Endian)
	}
}

// EraseBlockBytes returns the configured erase block size, or 0 for auto.
func (c *ImageConfig) EraseBlockBytes() (int64, error) {
	switch strings.ToLower(c.EraseBlockSize) {
	case "", "auto", "0":
		return 0, nil
	}
	size, err := humanize.ParseBytes(c.EraseBlockSize)
	if err != nil {
		return 0, fmt.Errorf("invalid erase_block_size %q: %w", c.EraseBlockSize, err)
	}
	if size < 4096 || size&(size-1) != 0 {
		return 0, fmt.Errorf("erase_block_size %s is not a power of two of at least 4KiB", humanize.IBytes(size))
	}
	return int64(size), nil
}

// MaxFileSizeBytes returns the per-file size limit, or 0 for unlimited.
func (c *ImageConfig) MaxFileSizeBytes() (uint64, error) {
	return parseLimit(KeyMaxFileSize, c.MaxFileSize)
}

// MaxTotalSizeBytes returns the limit on the file content held in memory
// across the whole image, or 0 for unlimited.
func (c *ImageConfig) MaxTotalSizeBytes() (uint64, error) {
	return parseLimit(KeyMaxTotalSize, c.MaxTotalSize)
}

func parseLimit(key, value string) (uint64, error) {
	switch strings.ToLower(value) {
	case "", "0", "unlimited":
		return 0, nil
	}
	size, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return size, nil
}

// DefaultImageConfig returns the configuration used when no file,
// environment or flag sets a key.
func DefaultImageConfig() *ImageConfig {
	v := viper.New()
	SetDefaults(v)
	config, err := UnmarshalImageConfig(v)
	if err != nil {
		panic("device: default configuration is invalid: " + err.Error())
	}
	return config
}
