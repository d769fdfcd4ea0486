package creative

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeAds parses an ad export: either a JSON array of ads or an object
// with an "ads" array.
func DecodeAds(data []byte) ([]Ad, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty ad export")
	}

	if data[0] == '[' {
		var ads []Ad
		if err := json.Unmarshal(data, &ads); err != nil {
			return nil, fmt.Errorf("parsing ad array: %w", err)
		}
		return ads, nil
	}

	var wrapped struct {
		Ads []Ad `json:"ads"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing ad export: %w", err)
	}
	if wrapped.Ads == nil {
		return nil, fmt.Errorf("ad export has no \"ads\" array")
	}
	return wrapped.Ads, nil
}
