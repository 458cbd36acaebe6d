package model

import (
	"net/url"
	"strings"
)

// ContactDisclosure is the counterparty contact revealed to a viewer.
type ContactDisclosure struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Contact roles.
const (
	ContactRoleBuyer  = "buyer"
	ContactRoleSeller = "seller"
)

// PhoneNotAvailable replaces a missing phone number.
const PhoneNotAvailable = "N/A"

// TelURI returns a tel: link for phone, or "" if there is no number.
func TelURI(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == PhoneNotAvailable {
		return ""
	}
	phone = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
	return "tel:" + phone
}

// MailtoURI returns a mailto: link for email, or "" if there is none.
func MailtoURI(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return (&url.URL{Scheme: "mailto", Opaque: email}).String()
}
