package main

// daemonConfig is the top-level shape viper decodes into, via
// pkg/config.Decode's defaults-then-validate discipline: viper loads the
// raw map, pkg/config applies the struct tags.
type daemonConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	Discord struct {
		Token     string `mapstructure:"token" validate:"required"`
		ChannelID string `mapstructure:"channel_id" validate:"required"`
	} `mapstructure:"discord"`

	Database struct {
		DSN string `mapstructure:"dsn" validate:"required"`
	} `mapstructure:"database"`

	Auth struct {
		Secret string `mapstructure:"secret" validate:"required"`
	} `mapstructure:"auth"`
}

func (c *daemonConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
}
