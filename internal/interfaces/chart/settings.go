package chart

// Align selects which edge of the HTF box the profile bars grow from.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// FootprintColors is the footprint cell palette. Values are CSS color
// strings passed through to the canvas untouched.
type FootprintColors struct {
	Buy           string `json:"buy"`
	Sell          string `json:"sell"`
	ImbalanceBuy  string `json:"imbalanceBuy"`
	ImbalanceSell string `json:"imbalanceSell"`
	POC           string `json:"poc"`
	Text          string `json:"text"`
	Background    string `json:"background"`
	Delta         string `json:"delta"`
}

// FootprintSettings configures the footprint overlay. The host UI owns
// these values and their persistence; the renderer only reads them.
type FootprintSettings struct {
	Enabled            bool            `json:"enabled"`
	FontSize           float64         `json:"fontSize"`
	PriceStep          float64         `json:"priceStep"`
	ImbalanceRatio     float64         `json:"imbalanceRatio"`
	ShowText           bool            `json:"showText"`
	ShowDeltaSummary   bool            `json:"showDeltaSummary"`
	MaxCandlesRendered int             `json:"maxCandlesRendered"`
	Colors             FootprintColors `json:"colors"`
}

func DefaultFootprintSettings() FootprintSettings {
	return FootprintSettings{
		Enabled:            true,
		FontSize:           11,
		PriceStep:          1,
		ImbalanceRatio:     3,
		ShowText:           true,
		ShowDeltaSummary:   true,
		MaxCandlesRendered: 60,
		Colors: FootprintColors{
			Buy:           "rgba(8, 153, 129, 0.55)",
			Sell:          "rgba(242, 54, 69, 0.55)",
			ImbalanceBuy:  "rgba(8, 153, 129, 1)",
			ImbalanceSell: "rgba(242, 54, 69, 1)",
			POC:           "rgba(255, 235, 59, 0.9)",
			Text:          "#d1d4dc",
			Background:    "rgba(19, 23, 34, 0.6)",
			Delta:         "#787b86",
		},
	}
}

// HTFColors is the higher-timeframe profile palette.
type HTFColors struct {
	Bull      string `json:"bull"`
	Bear      string `json:"bear"`
	POC       string `json:"poc"`
	ValueArea string `json:"valueArea"`
	Profile   string `json:"profile"`
}

// HTFSettings configures the higher-timeframe volume-profile overlay.
type HTFSettings struct {
	Enabled         bool      `json:"enabled"`
	Timeframe       string    `json:"timeframe"`
	WidthPercentage float64   `json:"widthPercentage"`
	Align           Align     `json:"align"`
	ShowOutline     bool      `json:"showOutline"`
	ShowProfile     bool      `json:"showProfile"`
	ShowPOC         bool      `json:"showPOC"`
	ShowValueArea   bool      `json:"showValueArea"`
	Colors          HTFColors `json:"colors"`
}

func DefaultHTFSettings() HTFSettings {
	return HTFSettings{
		Enabled:         true,
		Timeframe:       "Auto",
		WidthPercentage: 30,
		Align:           AlignLeft,
		ShowOutline:     true,
		ShowProfile:     true,
		ShowPOC:         true,
		ShowValueArea:   false,
		Colors: HTFColors{
			Bull:      "rgba(8, 153, 129, 0.8)",
			Bear:      "rgba(242, 54, 69, 0.8)",
			POC:       "rgba(255, 235, 59, 0.9)",
			ValueArea: "rgba(33, 150, 243, 0.15)",
			Profile:   "rgba(120, 123, 134, 0.35)",
		},
	}
}
