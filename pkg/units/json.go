package units

import (
	"bytes"
	"encoding/json"
)

// jsonText returns the text of a JSON string or number literal so both
// "500 kbps" and 500000 decode through the text parsers.
func jsonText(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(b), nil
}

// UnmarshalJSON accepts a JSON string or number.
func (f *Frequency) UnmarshalJSON(b []byte) error {
	s, err := jsonText(b)
	if err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}

// UnmarshalJSON accepts a JSON string or number.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	s, err := jsonText(b)
	if err != nil {
		return err
	}
	return r.UnmarshalText([]byte(s))
}

// UnmarshalJSON accepts a JSON string or number. Numbers are ratios, as in
// ParsePercent.
func (p *Percent) UnmarshalJSON(b []byte) error {
	s, err := jsonText(b)
	if err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}
