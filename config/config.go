// Package config loads node options from a YAML file and PEERNOTES_*
// environment variables on top of the built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/opd-ai/peernotes"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PEERNOTES_LISTEN_ADDR.
const EnvPrefix = "PEERNOTES"

// Configuration keys.
const (
	KeyDataDir          = "data_dir"
	KeyIdentityFile     = "identity_file"
	KeyContactsFile     = "contacts_file"
	KeyPassphrase       = "passphrase"
	KeyLabel            = "label"
	KeyListenAddr       = "listen_addr"
	KeyTransport        = "transport"
	KeyLinkEncryption   = "link_encryption"
	KeyProxyAddr        = "proxy_addr"
	KeyPeers            = "peers"
	KeyChannel          = "channel"
	KeySendQueueSize    = "send_queue_size"
	KeyHandshakeTimeout = "handshake_timeout"
	KeyInboundRate      = "inbound_rate"
	KeyInboundBurst     = "inbound_burst"
	KeyLogLevel         = "log_level"
)

// New returns a viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	defaults := peernotes.NewOptions()

	conf := viper.New()
	conf.SetConfigType("yaml")
	conf.SetDefault(KeyDataDir, defaults.DataDir)
	conf.SetDefault(KeyIdentityFile, defaults.IdentityFile)
	conf.SetDefault(KeyContactsFile, defaults.ContactsFile)
	conf.SetDefault(KeyPassphrase, defaults.Passphrase)
	conf.SetDefault(KeyLabel, defaults.Label)
	conf.SetDefault(KeyListenAddr, defaults.ListenAddr)
	conf.SetDefault(KeyTransport, string(defaults.Transport))
	conf.SetDefault(KeyLinkEncryption, defaults.LinkEncryption)
	conf.SetDefault(KeyProxyAddr, defaults.ProxyAddr)
	conf.SetDefault(KeyPeers, []string{})
	conf.SetDefault(KeyChannel, defaults.Channel)
	conf.SetDefault(KeySendQueueSize, defaults.SendQueueSize)
	conf.SetDefault(KeyHandshakeTimeout, defaults.HandshakeTimeout)
	conf.SetDefault(KeyInboundRate, defaults.InboundRate)
	conf.SetDefault(KeyInboundBurst, defaults.InboundBurst)
	conf.SetDefault(KeyLogLevel, defaults.LogLevel)

	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()
	return conf
}

// Load reads path, when non-empty, and returns the resulting options. A
// missing or unparsable file is an error; an empty path uses defaults and
// the environment only.
func Load(path string) (*peernotes.Options, error) {
	conf := New()
	if path != "" {
		conf.SetConfigFile(path)
		if err := conf.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Options(conf)
}

// Options converts conf into node options and validates them.
func Options(conf *viper.Viper) (*peernotes.Options, error) {
	opts := &peernotes.Options{
		DataDir:          conf.GetString(KeyDataDir),
		IdentityFile:     conf.GetString(KeyIdentityFile),
		ContactsFile:     conf.GetString(KeyContactsFile),
		Passphrase:       conf.GetString(KeyPassphrase),
		Label:            conf.GetString(KeyLabel),
		ListenAddr:       conf.GetString(KeyListenAddr),
		Transport:        peernotes.TransportType(strings.ToLower(conf.GetString(KeyTransport))),
		LinkEncryption:   conf.GetBool(KeyLinkEncryption),
		ProxyAddr:        conf.GetString(KeyProxyAddr),
		Peers:            splitPeers(conf.GetStringSlice(KeyPeers)),
		Channel:          conf.GetString(KeyChannel),
		SendQueueSize:    conf.GetInt(KeySendQueueSize),
		HandshakeTimeout: conf.GetDuration(KeyHandshakeTimeout),
		InboundRate:      conf.GetFloat64(KeyInboundRate),
		InboundBurst:     conf.GetInt(KeyInboundBurst),
		LogLevel:         conf.GetString(KeyLogLevel),
	}

	switch opts.Transport {
	case peernotes.TransportTCP, peernotes.TransportQUIC:
	default:
		return nil, fmt.Errorf("%s: unknown transport %q", KeyTransport, opts.Transport)
	}
	if opts.SendQueueSize < 1 {
		return nil, fmt.Errorf("%s: must be positive, got %d", KeySendQueueSize, opts.SendQueueSize)
	}
	if opts.HandshakeTimeout < 0 {
		return nil, fmt.Errorf("%s: must not be negative", KeyHandshakeTimeout)
	}
	if opts.InboundRate < 0 {
		return nil, fmt.Errorf("%s: must not be negative", KeyInboundRate)
	}
	if _, err := logrus.ParseLevel(opts.LogLevel); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return opts, nil
}

// ApplyLogLevel sets the global logrus level from opts.
func ApplyLogLevel(opts *peernotes.Options) error {
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

// splitPeers accepts both YAML lists and comma separated environment values.
func splitPeers(values []string) []string {
	var peers []string
	for _, v := range values {
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				peers = append(peers, addr)
			}
		}
	}
	return peers
}
