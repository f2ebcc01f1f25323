package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// server's components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port for game client connections.
	Port int `mapstructure:"port"`
	// Maximum number of authenticated players. Reloadable.
	MaxPlayers int `mapstructure:"max_players"`
	// Name and message of the day sent to every player after the handshake.
	ServerName string `mapstructure:"server_name"`
	MOTD       string `mapstructure:"motd"`
	// Opaque game settings forwarded to clients.
	WarpMode int `mapstructure:"warp_mode"`
	GameMode int `mapstructure:"game_mode"`
	// Only allow whitelisted names to join. Reloadable.
	WhitelistEnabled bool `mapstructure:"whitelist_enabled"`
	// Names nobody may play under.
	ReservedNames []string `mapstructure:"reserved_names"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"file"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel      string `mapstructure:"level"`
		IncludeCaller bool   `mapstructure:"include_caller"`
	} `mapstructure:"logging"`

	Database struct {
		// Either sqlite or postgres.
		Engine string `mapstructure:"engine"`
		// Database file used by the sqlite engine.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Web struct {
		// HTTP endpoint port for the status and metrics endpoints. Zero disables it.
		HTTPPort int `mapstructure:"http_port"`
	} `mapstructure:"web"`

	ModControl struct {
		// Mode sent in the handshake reply. Zero disables mod control.
		Mode int `mapstructure:"mode"`
		// File whose contents are sent as the mod control text.
		File string `mapstructure:"file"`
	} `mapstructure:"mod_control"`

	Connection struct {
		// Send a heartbeat when nothing has been sent for this long.
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		// Disconnect authenticated players that have been silent this long.
		Timeout time.Duration `mapstructure:"timeout"`
		// Disconnect connections that have not finished the handshake in this long.
		AuthTimeout time.Duration `mapstructure:"auth_timeout"`
		// How long a connected player gets to answer a heartbeat when someone else
		// tries to join under the same name.
		HandshakeGrace time.Duration `mapstructure:"handshake_grace"`
		// Per-address connection attempts allowed each second.
		MaxConnectionsPerIPPerSecond float64 `mapstructure:"max_connections_per_ip_per_second"`
	} `mapstructure:"connection"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log packets to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "WARPSERVER"

// SetDefaults registers the value of every option that the config file may omit.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("port", 8800)
	v.SetDefault("max_players", 50)
	v.SetDefault("server_name", "Warp Server")
	v.SetDefault("motd", "")
	v.SetDefault("whitelist_enabled", false)
	v.SetDefault("reserved_names", []string{"Server", "Console", "Admin"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "warpserver.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("web.http_port", 8900)
	v.SetDefault("connection.heartbeat_interval", 5*time.Second)
	v.SetDefault("connection.timeout", 20*time.Second)
	v.SetDefault("connection.auth_timeout", 10*time.Second)
	v.SetDefault("connection.handshake_grace", time.Second)
	v.SetDefault("connection.max_connections_per_ip_per_second", 5.0)
	v.SetDefault("debugging.pprof_port", 6060)
}

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.GetViper()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	SetDefaults(v)

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

// WatchConfig re-reads the config file whenever it changes and passes the new
// values to onChange. Only a subset of options (see Reloadable) take effect
// without a restart.
func WatchConfig(onChange func(*Config, error)) {
	v := viper.GetViper()
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(unmarshal(v))
	})
	v.WatchConfig()
}

// Reloadable is the part of the config that can change while the server runs.
type Reloadable struct {
	MOTD             string
	MaxPlayers       int
	WhitelistEnabled bool
}

func (c *Config) Reloadable() Reloadable {
	return Reloadable{
		MOTD:             c.MOTD,
		MaxPlayers:       c.MaxPlayers,
		WhitelistEnabled: c.WhitelistEnabled,
	}
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns the data source for the configured engine: a file name for
// sqlite and a connection string for postgres.
func (c *Config) DatabaseURL() string {
	if c.Database.Engine != "postgres" {
		return c.Database.Filename
	}
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// ListenAddress returns the address game clients connect to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
