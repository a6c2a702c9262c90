package metadata

// VisionModel is a Gemini model that accepts inline images.
type VisionModel struct {
	ID               string
	Label            string
	InputPerMillion  float64
	OutputPerMillion float64
}

var VisionModels = []VisionModel{
	{
		ID:               "gemini-2.5-flash",
		Label:            "Gemini 2.5 Flash",
		InputPerMillion:  0.30,
		OutputPerMillion: 2.50,
	},
	{
		ID:               "gemini-2.5-flash-lite",
		Label:            "Gemini 2.5 Flash-Lite",
		InputPerMillion:  0.10,
		OutputPerMillion: 0.40,
	},
	{
		ID:               "gemini-2.5-pro",
		Label:            "Gemini 2.5 Pro",
		InputPerMillion:  1.25,
		OutputPerMillion: 10.00,
	},
}

const (
	DefaultInputPerMillion  = 1.25
	DefaultOutputPerMillion = 10.00
)

func ModelIDs() []string {
	ids := make([]string, 0, len(VisionModels))
	for _, m := range VisionModels {
		ids = append(ids, m.ID)
	}
	return ids
}

// Pricing returns the catalog entry for modelID, or default pricing.
func Pricing(modelID string) (VisionModel, bool) {
	for _, m := range VisionModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return VisionModel{
		ID:               "default",
		Label:            "Default Gemini",
		InputPerMillion:  DefaultInputPerMillion,
		OutputPerMillion: DefaultOutputPerMillion,
	}, false
}

// CostRange bounds the USD cost of totalTokens. The API reports only a
// total, so low bills every token as input and high bills every token as output.
func CostRange(modelID string, totalTokens int) (low, high float64) {
	m, _ := Pricing(modelID)
	t := float64(totalTokens) / 1_000_000
	return t * m.InputPerMillion, t * m.OutputPerMillion
}
