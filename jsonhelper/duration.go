// Package jsonhelper provides JSON-friendly wrappers for configuration values.
package jsonhelper

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Duration is [time.Duration] encoded as a Go duration string such as "1.5s".
//
// When decoding JSON, a bare number is also accepted and taken as seconds.
type Duration time.Duration

// Value returns the duration as [time.Duration].
func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

// String returns the duration in Go duration syntax.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements [encoding.TextMarshaler.MarshalText].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler.UnmarshalText].
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// UnmarshalJSON implements [json.Unmarshaler.UnmarshalJSON].
func (d *Duration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}

	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", data, err)
	}
	ns := secs * float64(time.Second)
	if math.IsNaN(ns) || ns > math.MaxInt64 || ns < math.MinInt64 {
		return fmt.Errorf("duration out of range: %s", data)
	}
	*d = Duration(ns)
	return nil
}
