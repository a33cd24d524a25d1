// Package email derives presentation values from email addresses.
package email

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const fallbackName = "KYC Applicant"

var titler = cases.Title(language.Und)

// DisplayName builds a human name from the local part of addr, splitting on
// the separators people use in addresses. "jane.doe+kyc@x.io" yields
// "Jane Doe Kyc". Addresses with no usable local part get a generic name.
func DisplayName(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		switch r {
		case '.', '_', '-', '+':
			return true
		}
		return false
	})
	if len(words) == 0 {
		return fallbackName
	}
	return titler.String(strings.Join(words, " "))
}
