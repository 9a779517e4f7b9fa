package domain

import (
	"strings"
	"time"
)

// CustomerInfo holds contact details gathered progressively during a conversation.
type CustomerInfo struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Email    string `json:"email,omitempty"`
}

// CustomerField names a CustomerInfo field.
type CustomerField string

const (
	FieldName     CustomerField = "name"
	FieldPhone    CustomerField = "phone"
	FieldLocation CustomerField = "location"
	FieldEmail    CustomerField = "email"
	FieldProblem  CustomerField = "problem"
)

// ConversationStage tracks where a session is in the support flow.
type ConversationStage string

const (
	StageGreeting   ConversationStage = "greeting"
	StageInquiry    ConversationStage = "inquiry"
	StageDetails    ConversationStage = "details"
	StageResolution ConversationStage = "resolution"
	StageEscalation ConversationStage = "escalation"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleCustomer  ChatRole = "customer"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn in the recent conversation history.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// InquiryProblemKey stores the extracted problem description in InquiryDetails.
const InquiryProblemKey = "problem"

// DefaultHistoryLimit caps History when no limit is configured.
const DefaultHistoryLimit = 20

// ConversationContext is the per-session aggregate owned by exactly one chat session.
type ConversationContext struct {
	SessionID      string            `json:"session_id"`
	Customer       CustomerInfo      `json:"customer"`
	InquiryDetails map[string]string `json:"inquiry_details"`
	Stage          ConversationStage `json:"stage"`
	History        []ChatMessage     `json:"history"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewConversationContext starts an empty context in the greeting stage.
func NewConversationContext(sessionID string, now time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID:      sessionID,
		InquiryDetails: map[string]string{},
		Stage:          StageGreeting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AppendMessage records a turn, keeping at most limit messages.
func (c *ConversationContext) AppendMessage(role ChatRole, content string, now time.Time, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	c.History = append(c.History, ChatMessage{Role: role, Content: content, Timestamp: now})
	if len(c.History) > limit {
		c.History = append([]ChatMessage(nil), c.History[len(c.History)-limit:]...)
	}
	c.UpdatedAt = now
}

// RecentHistory returns the last n messages.
func (c *ConversationContext) RecentHistory(n int) []ChatMessage {
	if c == nil || n <= 0 || len(c.History) == 0 {
		return nil
	}
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// Problem returns the accumulated problem description, if any.
func (c *ConversationContext) Problem() string {
	if c == nil || c.InquiryDetails == nil {
		return ""
	}
	return c.InquiryDetails[InquiryProblemKey]
}

// SetCustomerField writes a field. Existing values are kept unless overwrite is set.
// It reports whether the value was written.
func (c *ConversationContext) SetCustomerField(field CustomerField, value string, overwrite bool) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	var target *string
	switch field {
	case FieldName:
		target = &c.Customer.Name
	case FieldPhone:
		target = &c.Customer.Phone
	case FieldLocation:
		target = &c.Customer.Location
	case FieldEmail:
		target = &c.Customer.Email
	case FieldProblem:
		if c.InquiryDetails == nil {
			c.InquiryDetails = map[string]string{}
		}
		if c.InquiryDetails[InquiryProblemKey] != "" && !overwrite {
			return false
		}
		c.InquiryDetails[InquiryProblemKey] = value
		return true
	default:
		return false
	}
	if *target != "" && !overwrite {
		return false
	}
	*target = value
	return true
}

// AdoptExtraction merges an extraction: a field is taken only when its confidence
// reaches threshold and the target is still empty. It returns the adopted fields.
func (c *ConversationContext) AdoptExtraction(result ExtractionResult, threshold float64) []CustomerField {
	var adopted []CustomerField
	candidates := []struct {
		field      CustomerField
		value      string
		confidence float64
	}{
		{FieldName, result.Name, result.Confidence.Name},
		{FieldPhone, result.Phone, result.Confidence.Phone},
		{FieldLocation, result.Location, result.Confidence.Location},
		{FieldProblem, result.Problem, result.Confidence.Problem},
	}
	for _, cand := range candidates {
		if cand.value == "" || cand.confidence < threshold {
			continue
		}
		if c.SetCustomerField(cand.field, cand.value, false) {
			adopted = append(adopted, cand.field)
		}
	}
	return adopted
}

// FieldConfidence holds per-field confidence in [0,1].
type FieldConfidence struct {
	Name     float64 `json:"name"`
	Phone    float64 `json:"phone"`
	Location float64 `json:"location"`
	Problem  float64 `json:"problem"`
}

// ExtractionResult is the structured output of customer-field extraction.
type ExtractionResult struct {
	Name       string          `json:"name,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Location   string          `json:"location,omitempty"`
	Problem    string          `json:"problem,omitempty"`
	Confidence FieldConfidence `json:"confidence"`
}

// Clamp forces every confidence into [0,1].
func (r *ExtractionResult) Clamp() {
	r.Confidence.Name = clampUnit(r.Confidence.Name)
	r.Confidence.Phone = clampUnit(r.Confidence.Phone)
	r.Confidence.Location = clampUnit(r.Confidence.Location)
	r.Confidence.Problem = clampUnit(r.Confidence.Problem)
}

func clampUnit(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
