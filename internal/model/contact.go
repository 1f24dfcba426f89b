package model

import (
	"sort"
	"strings"
)

// VerificationStatus is a deliverability signal for an email address.
// The MX validator only emits MXPresent, NoMX and Unknown; the remaining
// values come from external verifiers and are understood by the scorer.
type VerificationStatus string

const (
	VerificationMXPresent VerificationStatus = "mx_present"
	VerificationNoMX      VerificationStatus = "no_mx"
	VerificationUnknown   VerificationStatus = "unknown"

	VerificationValid         VerificationStatus = "valid"
	VerificationVerified      VerificationStatus = "verified"
	VerificationDeliverable   VerificationStatus = "deliverable"
	VerificationAcceptAll     VerificationStatus = "accept_all"
	VerificationCatchAll      VerificationStatus = "catch_all"
	VerificationRisky         VerificationStatus = "risky"
	VerificationOK            VerificationStatus = "ok"
	VerificationInvalid       VerificationStatus = "invalid"
	VerificationUndeliverable VerificationStatus = "undeliverable"
	VerificationDisposable    VerificationStatus = "disposable"
	VerificationBad           VerificationStatus = "bad"
	VerificationRejected      VerificationStatus = "rejected"
)

// Normalize lower-cases and trims the status.
func (v VerificationStatus) Normalize() VerificationStatus {
	return VerificationStatus(strings.ToLower(strings.TrimSpace(string(v))))
}

// ContactQuality describes the best contact channel on a lead.
type ContactQuality string

const (
	ContactNamedEmail ContactQuality = "named_email"
	ContactRoleEmail  ContactQuality = "role_email"
	ContactPhoneOnly  ContactQuality = "phone_only"
	ContactNone       ContactQuality = ""
)

// ParseContactQuality returns the quality if s is one of the known values.
func ParseContactQuality(s string) (ContactQuality, bool) {
	switch q := ContactQuality(strings.ToLower(strings.TrimSpace(s))); q {
	case ContactNamedEmail, ContactRoleEmail, ContactPhoneOnly:
		return q, true
	}
	return ContactNone, false
}

// RawContactSet collects every email and phone found across a site's pages.
// Emails map to the first page they were seen on.
type RawContactSet struct {
	Emails map[string]string `json:"emails"`
	Phones map[string]bool   `json:"phones"`
}

// NewRawContactSet returns an empty set.
func NewRawContactSet() *RawContactSet {
	return &RawContactSet{
		Emails: make(map[string]string),
		Phones: make(map[string]bool),
	}
}

// AddEmail records email if it has not been seen. Emails are lower-cased.
func (s *RawContactSet) AddEmail(email, sourceURL string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	if _, ok := s.Emails[email]; ok {
		return
	}
	s.Emails[email] = sourceURL
}

// AddPhone records an E.164 phone number.
func (s *RawContactSet) AddPhone(phone string) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return
	}
	s.Phones[phone] = true
}

// Empty reports whether nothing was found.
func (s *RawContactSet) Empty() bool {
	return s == nil || (len(s.Emails) == 0 && len(s.Phones) == 0)
}

// SortedEmails returns the emails in lexical order.
func (s *RawContactSet) SortedEmails() []string {
	out := make([]string, 0, len(s.Emails))
	for e := range s.Emails {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// SortedPhones returns the phones in lexical order.
func (s *RawContactSet) SortedPhones() []string {
	out := make([]string, 0, len(s.Phones))
	for p := range s.Phones {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SourceOf returns the page an email was first seen on.
func (s *RawContactSet) SourceOf(email string) string {
	return s.Emails[email]
}

// RankedContact is a scored candidate email for a domain.
type RankedContact struct {
	Email              string             `json:"email"`
	Confidence         int                `json:"confidence"`
	Role               bool               `json:"role"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	SourceURL          string             `json:"source_url"`
}

// LocalPart returns the part of an email before the last "@".
func LocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[:i])
	}
	return ""
}

// EmailHost returns the part of an email after the last "@".
func EmailHost(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}
