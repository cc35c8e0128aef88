package models

// MaxKeywords bounds every keyword set produced in the pipeline.
const MaxKeywords = 15

type ExtractedDetails struct {
	Amount       *float64 `json:"amount,omitempty"`
	Location     string   `json:"location,omitempty"`
	FacilityType string   `json:"facilityType,omitempty"`
	Urgency      string   `json:"urgency,omitempty"`
}

func (d ExtractedDetails) IsEmpty() bool {
	return d.Amount == nil && d.Location == "" && d.FacilityType == "" && d.Urgency == ""
}

type Classification struct {
	Category         Category         `json:"category,omitempty"`
	Keywords         []string         `json:"keywords"`
	ExtractedDetails ExtractedDetails `json:"extractedDetails"`
	Confidence       float64          `json:"confidence"`
}
