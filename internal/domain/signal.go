package domain

// Urgency is the customer's stated need, as opposed to the derived ticket priority.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// TriggerCategory groups trigger phrases by the scenario they indicate.
type TriggerCategory string

const (
	TriggerAppointmentNoShow TriggerCategory = "appointment_no_show"
	TriggerFailedCall        TriggerCategory = "failed_call"
	TriggerLegacy            TriggerCategory = "legacy"
)

// FailedCallSignal is the detector verdict for a single message.
type FailedCallSignal struct {
	Detected           bool            `json:"detected"`
	TriggerPhrase      string          `json:"trigger_phrase,omitempty"`
	TriggerCategory    TriggerCategory `json:"trigger_category,omitempty"`
	CustomerData       CustomerInfo    `json:"customer_data"`
	MissingFields      []string        `json:"missing_fields"`
	ProblemDescription string          `json:"problem_description,omitempty"`
	Location           string          `json:"location,omitempty"`
	UrgencyLevel       Urgency         `json:"urgency_level,omitempty"`
}

// Complete reports whether nothing is missing.
func (s FailedCallSignal) Complete() bool {
	return s.Detected && len(s.MissingFields) == 0
}
