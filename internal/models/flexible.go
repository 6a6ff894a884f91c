package models

import (
	"encoding/json"
	"fmt"
)

// FlexibleString decodes from either a JSON string or a JSON number.
// Gateway transaction IDs reach us in both forms depending on the client SDK.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexibleString(n.String())
	return nil
}

func (f FlexibleString) String() string { return string(f) }
