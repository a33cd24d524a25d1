// Package validator checks KYC submissions for format and completeness.
//
// A Validator is built once at startup and is safe for concurrent use; it holds
// only compiled patterns and the required-field table. Validate never stops at
// the first problem so callers can report every error in one response.
package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kycgate/internal/kyc/models"
)

const (
	ErrInvalidPAN        = "Invalid PAN number format"
	ErrInvalidPhone      = "Invalid phone number format"
	ErrInvalidPostalCode = "Invalid postal code"

	minPostalCodeLen = 3
)

type requiredField struct {
	label string
	value func(*models.Data) string
}

// Validator holds the compiled rule set.
type Validator struct {
	pan        *regexp.Regexp
	phone      *regexp.Regexp
	phoneNoise *strings.Replacer
	required   []requiredField
}

// New compiles the rule set.
func New() *Validator {
	return &Validator{
		pan:        regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`),
		phone:      regexp.MustCompile(`^\+?[1-9]\d{1,14}$`),
		phoneNoise: strings.NewReplacer(" ", "", "-", ""),
		required:   requiredFields(),
	}
}

func requiredFields() []requiredField {
	caser := cases.Title(language.Und)
	field := func(name string, value func(*models.Data) string) requiredField {
		return requiredField{
			label: caser.String(strings.ReplaceAll(name, "_", " ")),
			value: value,
		}
	}
	return []requiredField{
		field("first_name", func(d *models.Data) string { return d.FirstName }),
		field("last_name", func(d *models.Data) string { return d.LastName }),
		field("date_of_birth", func(d *models.Data) string { return d.DateOfBirth }),
		field("nationality", func(d *models.Data) string { return d.Nationality }),
		field("phone_number", func(d *models.Data) string { return d.PhoneNumber }),
		field("address_line1", func(d *models.Data) string { return d.AddressLine1 }),
		field("city", func(d *models.Data) string { return d.City }),
		field("state", func(d *models.Data) string { return d.State }),
		field("country", func(d *models.Data) string { return d.Country }),
		field("government_id_type", func(d *models.Data) string { return d.GovernmentIDType }),
		field("government_id_number", func(d *models.Data) string { return d.GovernmentIDNumber }),
	}
}

// Validate returns every rule violation in data. An empty result means valid.
func (v *Validator) Validate(data *models.Data) []string {
	if data == nil {
		data = &models.Data{}
	}
	var errs []string

	if pan := strings.TrimSpace(data.PANNumber); pan != "" && !v.ValidPAN(pan) {
		errs = append(errs, ErrInvalidPAN)
	}
	if !v.ValidPhone(data.PhoneNumber) {
		errs = append(errs, ErrInvalidPhone)
	}
	if utf8.RuneCountInString(data.PostalCode) < minPostalCodeLen {
		errs = append(errs, ErrInvalidPostalCode)
	}
	for _, f := range v.required {
		if strings.TrimSpace(f.value(data)) == "" {
			errs = append(errs, f.label+" is required")
		}
	}
	return errs
}

// ValidPAN reports whether pan is five capitals, four digits and a capital.
func (v *Validator) ValidPAN(pan string) bool {
	return v.pan.MatchString(pan)
}

// ValidPhone reports whether phone is an international-style number once
// spaces and hyphens are removed.
func (v *Validator) ValidPhone(phone string) bool {
	return v.phone.MatchString(v.phoneNoise.Replace(phone))
}
