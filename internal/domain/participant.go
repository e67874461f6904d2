package domain

// NetworkQuality follows the backend's 0..6 quality scale.
type NetworkQuality int

const (
	QualityUnknown NetworkQuality = iota
	QualityExcellent
	QualityGood
	QualityPoor
	QualityBad
	QualityVeryBad
	QualityDown
)

func (q NetworkQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityPoor:
		return "poor"
	case QualityBad:
		return "bad"
	case QualityVeryBad:
		return "very_bad"
	case QualityDown:
		return "down"
	default:
		return "unknown"
	}
}

// Valid reports whether q is on the scale.
func (q NetworkQuality) Valid() bool {
	return q >= QualityUnknown && q <= QualityDown
}

// Participant represents a user's presence and media state inside a room.
type Participant struct {
	UserID       UserID         `json:"user_id"`
	AudioEnabled bool           `json:"audio"`
	VideoEnabled bool           `json:"video"`
	Quality      NetworkQuality `json:"quality"`
}

// NewParticipant returns a participant with media off and unknown quality.
func NewParticipant(id UserID) Participant {
	return Participant{UserID: id}
}
