// Package wire maps the loosely typed JSON of the REST API and the broker
// to validated domain values. Nothing past this package sees raw payloads.
package wire

import (
	"bytes"
	"classroom-live/errors"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID accepts a JSON string or a JSON number.
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*i = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id %s", errors.ErrMalformedPayload, string(b))
	}
	*i = ID(n.String())
	return nil
}

// localLayouts are the zone-less date-times the backend emits; read as UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// Timestamp accepts RFC 3339, a zone-less ISO local date-time or epoch milliseconds.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := parseTime(s)
		if err != nil {
			return err
		}
		*t = Timestamp(parsed)
		return nil
	}
	parsed, err := parseMillis(string(b))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return parsed, nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed, nil
		}
	}
	if parsed, err := parseMillis(s); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", errors.ErrMalformedPayload, s)
}

func parseMillis(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %s", errors.ErrMalformedPayload, s)
}
