// Package state reads lightlink configuration.
package state

import (
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/tele"
)

const (
	DefaultListenHost     = "0.0.0.0"
	DefaultReplyTimeoutMs = 1000
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Server struct {
		Host          string `hcl:"host"`
		Port          int    `hcl:"port"`
		Mode          string `hcl:"mode"`
		ReadLimit     int    `hcl:"read_limit"`
		MetricsListen string `hcl:"metrics_listen"`
	} `hcl:"server"`

	Client struct {
		ServerHost         string `hcl:"server_host"`
		Port               int    `hcl:"port"`
		InitialSeq         int    `hcl:"initial_seq"`
		HandshakeTimeoutMs int    `hcl:"handshake_timeout_ms"`
		PollMs             int    `hcl:"poll_ms"`
		CooldownMs         int    `hcl:"cooldown_ms"`
		ReplyTimeoutMs     int    `hcl:"reply_timeout_ms"` // console only
	} `hcl:"client"`

	Journal struct {
		Path string `hcl:"path"`
	} `hcl:"journal"`

	Hardware pin.Config  `hcl:"hardware"`
	Tele     tele.Config `hcl:"tele"`

	Log struct {
		Debug bool `hcl:"debug"`
	} `hcl:"log"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func NewConfig() *Config {
	return &Config{includeSeen: make(map[string]struct{})}
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		log.Fatalf("config duplicate source=%s", source.Name)
	} else {
		log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	}
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
			return
		}
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig merges sources in order, later values override earlier.
// Without names returns defaults.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	c := NewConfig()
	names = append([]string(nil), names...)
	if len(names) != 0 {
		// includes are relative to the first file
		if osfs, ok := fs.(*OsFullReader); ok {
			dir, name := filepath.Split(names[0])
			osfs.SetBase(dir)
			names[0] = name
		}
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultListenHost
	}
	if c.Client.ReplyTimeoutMs == 0 {
		c.Client.ReplyTimeoutMs = DefaultReplyTimeoutMs
	}
}

// Validate checks values that may come from both file and command line.
func (c *Config) Validate(role string) error {
	errs := make([]error, 0, 4)
	switch role {
	case "server":
		errs = append(errs, ValidatePort(c.Server.Port))
		if c.Server.ReadLimit < 0 {
			errs = append(errs, errors.NotValidf("server.read_limit=%d", c.Server.ReadLimit))
		}
	case "client", "console":
		errs = append(errs, ValidatePort(c.Client.Port))
		if c.Client.ServerHost == "" {
			errs = append(errs, errors.NotValidf("client.server_host empty"))
		}
		if c.Client.InitialSeq < 0 || uint64(c.Client.InitialSeq) > 0xfffffffe {
			errs = append(errs, errors.NotValidf("client.initial_seq=%d", c.Client.InitialSeq))
		}
	default:
		return errors.NotValidf("code error config role=%s", role)
	}
	return helpers.FoldErrors(errs)
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.NotValidf("port=%d must be between 1 and 65535,", port)
	}
	return nil
}
