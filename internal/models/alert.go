package models

import (
	"encoding/json"
	"strings"
)

// CrisisType classifies the crisis an alert is about.
type CrisisType string

const (
	CrisisDrought   CrisisType = "drought"
	CrisisEconomic  CrisisType = "economic"
	CrisisPolitical CrisisType = "political"
	CrisisSocial    CrisisType = "social"
	CrisisOther     CrisisType = "other"

	// CrisisProbe marks a configuration probe. The dispatch endpoint answers
	// it without contacting any provider.
	CrisisProbe CrisisType = "check"
)

func (c CrisisType) Valid() bool {
	switch c {
	case CrisisDrought, CrisisEconomic, CrisisPolitical, CrisisSocial, CrisisOther, CrisisProbe:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityExtreme Severity = "extreme"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityExtreme:
		return true
	}
	return false
}

// CrisisContext is the read-only crisis an operator is alerting about.
type CrisisContext struct {
	CrisisType CrisisType `json:"crisisType"`
	RegionName string     `json:"regionName"`
	Severity   Severity   `json:"severity"`
}

// DefaultSubject is the subject pre-filled into a fresh email form.
func (c CrisisContext) DefaultSubject() string {
	return "URGENT: " + strings.ToUpper(string(c.Severity)) + " " + string(c.CrisisType) +
		" crisis alert for " + c.RegionName
}

// DefaultBody is the message pre-filled into a fresh email form.
func (c CrisisContext) DefaultBody() string {
	var b strings.Builder
	b.WriteString("CrisisScope has detected a " + string(c.Severity) + " severity " +
		string(c.CrisisType) + " crisis in " + c.RegionName + ".\n\n")
	b.WriteString("Crisis type: " + string(c.CrisisType) + "\n")
	b.WriteString("Region: " + c.RegionName + "\n")
	b.WriteString("Severity: " + string(c.Severity) + "\n\n")
	b.WriteString("Please review the situation and follow official guidance from local authorities.")
	return b.String()
}

// Recipients selects the fixed recipient categories added server-side.
type Recipients struct {
	Authorities bool `json:"authorities"`
	NGOs        bool `json:"ngos"`
	Media       bool `json:"media"`
}

func (r Recipients) Any() bool {
	return r.Authorities || r.NGOs || r.Media
}

// DispatchRequest is the body sent to the dispatch endpoint.
type DispatchRequest struct {
	Email         string     `json:"email"`
	Subject       string     `json:"subject"`
	Message       string     `json:"message"`
	Recipients    Recipients `json:"recipients"`
	CrisisType    CrisisType `json:"crisisType"`
	RegionName    string     `json:"regionName"`
	Severity      Severity   `json:"severity"`
	SendSMS       bool       `json:"sendSms"`
	PhoneNumbers  []string   `json:"phoneNumbers"`
	SMSRecipients Recipients `json:"smsRecipients"`
}

// IsProbe reports whether the request is a configuration probe.
func (r *DispatchRequest) IsProbe() bool {
	return r.CrisisType == CrisisProbe
}

// DispatchResult is the endpoint's response. Email is provider-specific and
// only its presence matters to callers.
type DispatchResult struct {
	Email json.RawMessage `json:"email,omitempty"`
	SMS   *SMSResult      `json:"sms,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SMSResult reports the SMS channel outcome.
type SMSResult struct {
	Sent         bool          `json:"sent"`
	Configured   bool          `json:"configured"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Responses    []SMSResponse `json:"responses"`
	// SenderPhone keeps the wire name used by existing dashboards.
	SenderPhone *string `json:"twilioPhone,omitempty"`
}

const (
	SMSStatusSent   = "sent"
	SMSStatusFailed = "failed"
)

// SMSResponse is the per-number delivery outcome.
type SMSResponse struct {
	To     string `json:"to"`
	Status string `json:"status"`
	SID    string `json:"sid,omitempty"`
	Error  string `json:"error,omitempty"`
}

// EmailReceipt is the email block the in-repo dispatch backend returns.
type EmailReceipt struct {
	MessageID  string   `json:"messageId,omitempty"`
	Provider   string   `json:"provider"`
	Recipients []string `json:"recipients,omitempty"`
	Probe      bool     `json:"probe,omitempty"`
}

// EmailMessage is one outgoing alert email. CC holds the category addresses.
type EmailMessage struct {
	From    string
	To      string
	CC      []string
	Subject string
	Body    string
}

// Recipients returns To followed by every CC address.
func (m EmailMessage) Recipients() []string {
	return append([]string{m.To}, m.CC...)
}
