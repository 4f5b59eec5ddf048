package boltz

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// HexString is a byte slice that is hex encoded on the wire
type HexString []byte

func (s *HexString) UnmarshalText(data []byte) (err error) {
	*s, err = hex.DecodeString(string(data))
	return err
}

func (s HexString) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s)), nil
}

// Percentage is sent by boltz either as a JSON number or a string
type Percentage float64

func (p Percentage) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

func (p Percentage) Ratio() float64 {
	return float64(p) / 100
}

// Calculate returns the percentage of value, rounded up to the next satoshi
func (p Percentage) Calculate(value uint64) uint64 {
	return uint64(math.Ceil(float64(value) * p.Ratio()))
}

func (p *Percentage) UnmarshalJSON(text []byte) error {
	var raw json.Number
	if err := json.Unmarshal(text, &raw); err != nil {
		var quoted string
		if err := json.Unmarshal(text, &quoted); err != nil {
			return fmt.Errorf("invalid percentage %s", text)
		}
		raw = json.Number(quoted)
	}
	parsed, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return err
	}
	*p = Percentage(parsed)
	return nil
}
