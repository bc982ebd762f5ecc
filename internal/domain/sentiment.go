package domain

// SentimentIndex is a 0-100 market mood score, Value is nil when unavailable.
type SentimentIndex struct {
	Value          *int   `json:"value"`
	Classification string `json:"classification"`
}

// UnknownSentiment is returned when the index source is unavailable.
func UnknownSentiment() SentimentIndex {
	return SentimentIndex{Classification: "unknown"}
}

// Band is a zone of the sentiment index.
type Band int

const (
	BandUnknown Band = iota
	BandExtremeFear
	BandFear
	BandNeutral
	BandGreed
	BandExtremeGreed
)

// String returns the human-readable band name.
func (b Band) String() string {
	switch b {
	case BandExtremeFear:
		return "Extreme Fear"
	case BandFear:
		return "Fear"
	case BandNeutral:
		return "Neutral"
	case BandGreed:
		return "Greed"
	case BandExtremeGreed:
		return "Extreme Greed"
	default:
		return "Unknown"
	}
}

// Bias is the contrarian action a band suggests.
func (b Band) Bias() string {
	switch b {
	case BandExtremeFear:
		return "strong buy"
	case BandFear:
		return "accumulate"
	case BandNeutral:
		return "hold"
	case BandGreed:
		return "trim"
	case BandExtremeGreed:
		return "strong sell"
	default:
		return "none"
	}
}

// MarshalText encodes the band by name.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a band name, unrecognised names become BandUnknown.
func (b *Band) UnmarshalText(text []byte) error {
	*b = BandUnknown
	for c := BandExtremeFear; c <= BandExtremeGreed; c++ {
		if c.String() == string(text) {
			*b = c
			return nil
		}
	}
	return nil
}
