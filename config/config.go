package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/yuuki0xff/tracevis/info"
)

// Directory Layout
//   $dir/config.json  - highlight settings

type Config struct {
	dir       string
	Highlight HighlightConfig
	wantSave  bool
}

// HighlightConfig is settings of the highlight selection.
type HighlightConfig struct {
	// LockTimeout is the maximum wait for the extern list lock.
	LockTimeout Duration
	// LockWarnInterval is the interval of warnings while waiting for the lock.
	LockWarnInterval Duration
	// RefreshInterval is the interval of the catalog refresh in the viewer.
	RefreshInterval Duration
}

func DefaultHighlightConfig() HighlightConfig {
	return HighlightConfig{
		LockTimeout:      Duration(1 * time.Second),
		LockWarnInterval: Duration(250 * time.Millisecond),
		RefreshInterval:  Duration(500 * time.Millisecond),
	}
}

// Duration is time.Duration which is encoded as a string like "1.5s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func NewConfig(dir string) *Config {
	if dir == "" {
		dir = info.DefaultConfigDir
	}

	return &Config{
		dir:       dir,
		Highlight: DefaultHighlightConfig(),
	}
}

func (c *Config) Dir() string {
	return c.dir
}

func (c *Config) Load() error {
	if _, err := os.Stat(c.configPath()); os.IsNotExist(err) {
		c.Highlight = DefaultHighlightConfig()
	} else {
		js, err := ioutil.ReadFile(c.configPath())
		if err != nil {
			return err
		}
		var saved struct {
			Highlight HighlightConfig
		}
		saved.Highlight = DefaultHighlightConfig()
		if err := json.Unmarshal(js, &saved); err != nil {
			return errors.Wrapf(err, "invalid config file: %s", c.configPath())
		}
		c.Highlight = saved.Highlight
	}
	return nil
}

func (c *Config) WantSave() {
	c.wantSave = true
}

func (c *Config) Save() error {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.dir, os.ModePerm); err != nil {
			return err
		}
	}

	js, err := json.Marshal(struct {
		Highlight HighlightConfig
	}{c.Highlight})
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(c.configPath(), js, os.ModePerm^0111); err != nil {
		return err
	}
	return nil
}

func (c *Config) SaveIfWant() error {
	if c.wantSave {
		return c.Save()
	}
	return nil
}

func (c Config) configPath() string {
	return path.Join(c.dir, "config.json")
}
