package event

import (
	"encoding/json"
	"time"
)

// AcceptanceEvent is the inbound queue payload announcing an agreement
// lifecycle change.
type AcceptanceEvent struct {
	Type string        `json:"type"`
	Data AgreementData `json:"data"`
}

// Version is the agreement revision identifier, which arrives as either a
// JSON number or a string.
type Version string

func (v *Version) UnmarshalJSON(b []byte) error {
	s, err := flexString(b)
	if err != nil {
		return err
	}
	*v = Version(s)
	return nil
}

// Identifier is an opaque pass-through identifier. Producers send these as
// strings or numbers interchangeably; neither form may fail the message.
type Identifier string

func (i *Identifier) UnmarshalJSON(b []byte) error {
	s, err := flexString(b)
	if err != nil {
		return err
	}
	*i = Identifier(s)
	return nil
}

func flexString(b []byte) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// AgreementData carries the agreement fields this service interprets plus the
// opaque pass-through identifiers forwarded to the render context.
type AgreementData struct {
	AgreementNumber  string  `json:"agreementNumber"`
	Version          Version `json:"version"`
	Status           string  `json:"status"`
	AgreementURL     string  `json:"agreementUrl"`
	AgreementEndDate string  `json:"agreementEndDate"`
	EndDate          string  `json:"endDate"`

	CorrelationID string     `json:"correlationId,omitempty"`
	ClientRef     Identifier `json:"clientRef,omitempty"`
	FRN           Identifier `json:"frn,omitempty"`
	SBI           Identifier `json:"sbi,omitempty"`
}

// VersionString returns the normalised revision identifier.
func (d AgreementData) VersionString() string {
	return string(d.Version)
}

// ParsedEndDate resolves whichever end-date field is populated. The second
// return reports whether a date was present and parseable.
func (d AgreementData) ParsedEndDate() (time.Time, bool) {
	raw := d.AgreementEndDate
	if raw == "" {
		raw = d.EndDate
	}
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
