package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

var ErrUnknownStorage = errors.New("unknown storage")

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"3000"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"3001"`
	Storage    string `yaml:"storage" env:"STORAGE" env-default:"memory"`
	Redis      Redis  `yaml:"redis"`
	Relay      Relay  `yaml:"relay"`
	WS         WS     `yaml:"ws"`
	Client     Client `yaml:"client"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Relay struct {
	CodeLength      int `yaml:"code-length" env:"RELAY_CODE_LENGTH" env-default:"6"`
	MaxCodeAttempts int `yaml:"max-code-attempts" env:"RELAY_MAX_CODE_ATTEMPTS" env-default:"16"`
}

type WS struct {
	ReadBuffer  int `yaml:"read-buffer" env:"WS_READ_BUFFER" env-default:"1024"`
	WriteBuffer int `yaml:"write-buffer" env:"WS_WRITE_BUFFER" env-default:"1024"`
}

// Client - settings of the terminal client.
type Client struct {
	BrokerURL       string        `yaml:"broker-url" env:"BROKER_URL" env-default:"ws://localhost:3001/peer"`
	OXPrefix        string        `yaml:"ox-prefix" env:"OX_PREFIX" env-default:"srinath-ox-"`
	DinoPrefix      string        `yaml:"dino-prefix" env:"DINO_PREFIX" env-default:"srinath-dino-"`
	ConnectTimeout  time.Duration `yaml:"connect-timeout" env:"CONNECT_TIMEOUT" env-default:"15s"`
	MaxCodeAttempts int           `yaml:"max-code-attempts" env:"MAX_CODE_ATTEMPTS" env-default:"8"`
	UpdateInterval  time.Duration `yaml:"update-interval" env:"UPDATE_INTERVAL" env-default:"150ms"`
	Name            string        `yaml:"name" env:"PLAYER_NAME"`
	Color           string        `yaml:"color" env:"PLAYER_COLOR" env-default:"#22c55e"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load - a .env file is read first, then the yaml file; without the yaml
// file only the environment and defaults apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}

	config := &Config{}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read environment: %w", err)
		}
	} else if err = cleanenv.ReadConfig(path, config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) validate() error {
	switch that.Storage {
	case StorageMemory, StorageRedis:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, that.Storage)
	}
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
