package receiver

import (
	"encoding/json"
)

const unknownCompany = "Unknown"

// Lead is the subset of a scraped contact the receiver understands.
type Lead struct {
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	Title            string        `json:"title"`
	OrganizationName string        `json:"organization_name"`
	LinkedInURL      string        `json:"linkedin_url"`
	City             string        `json:"city"`
	State            string        `json:"state"`
	Country          string        `json:"country"`
	EmailStatus      string        `json:"email_status"`
	PhoneNumbers     []PhoneNumber `json:"phone_numbers"`
}

// PhoneNumber is one entry of a lead's phone list.
type PhoneNumber struct {
	SanitizedNumber string `json:"sanitized_number"`
}

// Phone returns the first sanitized number, if any.
func (l Lead) Phone() string {
	if len(l.PhoneNumbers) == 0 {
		return ""
	}
	return l.PhoneNumbers[0].SanitizedNumber
}

// Contact is a verified email or phone extracted from a lead.
type Contact struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Title   string `json:"title,omitempty"`
	Company string `json:"company"`
}

// Summary aggregates a delivered dataset.
type Summary struct {
	VerifiedEmails []Contact      `json:"verifiedEmails"`
	Companies      map[string]int `json:"companies"`
	Phones         []Contact      `json:"phones"`
}

// decodeLeads converts raw items to leads; items that are not objects become empty leads.
func decodeLeads(items []json.RawMessage) []Lead {
	leads := make([]Lead, len(items))
	for i, raw := range items {
		_ = json.Unmarshal(raw, &leads[i])
	}
	return leads
}

// Summarize extracts verified emails, the company distribution and first phone numbers.
func Summarize(leads []Lead) Summary {
	s := Summary{
		VerifiedEmails: []Contact{},
		Companies:      map[string]int{},
		Phones:         []Contact{},
	}
	for _, lead := range leads {
		if lead.Email != "" && lead.EmailStatus == "verified" {
			s.VerifiedEmails = append(s.VerifiedEmails, Contact{
				Name:    lead.Name,
				Value:   lead.Email,
				Title:   lead.Title,
				Company: lead.OrganizationName,
			})
		}

		company := lead.OrganizationName
		if company == "" {
			company = unknownCompany
		}
		s.Companies[company]++

		if len(lead.PhoneNumbers) > 0 {
			s.Phones = append(s.Phones, Contact{
				Name:    lead.Name,
				Value:   lead.Phone(),
				Company: lead.OrganizationName,
			})
		}
	}
	return s
}
