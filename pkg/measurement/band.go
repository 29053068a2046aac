package measurement

type Range string

const (
	Cold        Range = "cold"
	Cool        Range = "cool"
	Comfortable Range = "comfortable"
	Warm        Range = "warm"
	Hot         Range = "hot"
)

// Band is a half-open temperature interval [Min, Max)
type Band struct {
	Range   Range   `json:"range"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Color   string  `json:"color"`
	BgColor string  `json:"bg_color"`
	Label   string  `json:"label"`
}

var bands = []Band{
	{Range: Cold, Min: -50, Max: 16, Color: "#1976D2", BgColor: "#E3F2FD", Label: "Kalt"},
	{Range: Cool, Min: 16, Max: 19, Color: "#0288D1", BgColor: "#E1F5FE", Label: "Kühl"},
	{Range: Comfortable, Min: 19, Max: 24, Color: "#388E3C", BgColor: "#E8F5E8", Label: "Angenehm"},
	{Range: Warm, Min: 24, Max: 27, Color: "#F57C00", BgColor: "#FFF3E0", Label: "Warm"},
	{Range: Hot, Min: 27, Max: 50, Color: "#D32F2F", BgColor: "#FFEBEE", Label: "Heiß"},
}

// Bands returns the temperature bands ordered from cold to hot
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}

// Classify returns the band of a temperature. Everything below the first
// band's upper bound is cold. Values matching no band, which means 50 and
// above, are reported as comfortable.
func Classify(temperature float64) Band {
	if temperature < bands[0].Max {
		return bands[0]
	}
	for _, b := range bands[1:] {
		if temperature >= b.Min && temperature < b.Max {
			return b
		}
	}
	return bands[2]
}
