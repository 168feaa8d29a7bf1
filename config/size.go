package config

import (
	"time"

	"github.com/docker/go-units"
)

// SizeArgument is a byte count written in human form, e.g. "512MB".
type SizeArgument struct {
	Size int64 `arg:"" help:"size in bytes"`
}

func (s *SizeArgument) UnmarshalText(text []byte) (err error) {
	s.Size, err = units.FromHumanSize(string(text))
	return
}

func (s SizeArgument) MarshalText() ([]byte, error) {
	return []byte(units.HumanSize(float64(s.Size))), nil
}

// Duration is a time.Duration written as "30s", "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
