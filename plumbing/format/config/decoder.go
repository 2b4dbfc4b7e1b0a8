package config

import (
	"io"

	"github.com/go-git/gcfg"
)

// Decoder reads config files in git's INI dialect.
type Decoder struct {
	io.Reader
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// Decode reads the whole config from the decoder's input and stores it
// into config.
func (d *Decoder) Decode(config *Config) error {
	cb := func(s, ss, k, v string, _ bool) error {
		switch {
		case ss == "" && k == "":
			config.Section(s)
		case ss != "" && k == "":
			config.Section(s).Subsection(ss)
		default:
			config.AddOption(s, ss, k, v)
		}
		return nil
	}
	return gcfg.ReadWithCallback(d, cb)
}
