package domain

// Card orientations and evidence domains of the tarot structured response.
const (
	OrientationUpright  = "upright"
	OrientationReversed = "reversed"
)

var EvidenceDomains = []string{"love", "career", "money", "general"}

// DrawnCard is one card of a tarot spread, as computed by the draw service.
type DrawnCard struct {
	CardID      string `json:"card_id"`
	Name        string `json:"name"`
	Orientation string `json:"orientation"`
	Position    string `json:"position"`
	Symbolism   string `json:"symbolism,omitempty"`
}

// CardEvidence is the per-draw evidence row the model must return.
type CardEvidence struct {
	CardID      string `json:"card_id"`
	Orientation string `json:"orientation"`
	Domain      string `json:"domain"`
	Position    string `json:"position"`
	Evidence    string `json:"evidence"`
}

// TarotReading is the structured tarot response after validation.
type TarotReading struct {
	Overall      string         `json:"overall"`
	Cards        []string       `json:"cards"`
	CardEvidence []CardEvidence `json:"card_evidence"`
	Advice       []string       `json:"advice"`
}
