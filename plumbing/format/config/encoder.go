package config

import (
	"fmt"
	"io"
)

// Encoder writes config files in git's INI dialect.
type Encoder struct {
	io.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w}
}

// Encode writes cfg to the encoder's output stream.
func (e *Encoder) Encode(cfg *Config) error {
	for _, s := range cfg.Sections {
		if len(s.Options) > 0 {
			if _, err := fmt.Fprintf(e, "[%s]\n", s.Name); err != nil {
				return err
			}
			if err := e.encodeOptions(s.Options); err != nil {
				return err
			}
		}

		for _, ss := range s.Subsections {
			if len(ss.Options) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(e, "[%s \"%s\"]\n", s.Name, ss.Name); err != nil {
				return err
			}
			if err := e.encodeOptions(ss.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) encodeOptions(opts Options) error {
	for _, o := range opts {
		if _, err := fmt.Fprintf(e, "\t%s = %s\n", o.Key, o.Value); err != nil {
			return err
		}
	}
	return nil
}
