package models

import "strings"

// Masked returns a copy of d with identity and bank numbers reduced to their
// last four characters, counted in runes. Values of four characters or fewer are fully masked.
func (d Data) Masked() Data {
	d.PANNumber = maskTail(d.PANNumber, "XXXXX")
	d.AadhaarNumber = maskTail(d.AadhaarNumber, "XXXX-XXXX-")
	d.BankAccountNumber = maskTail(d.BankAccountNumber, "XXXXXXXX")
	d.GovernmentIDNumber = maskTail(d.GovernmentIDNumber, "XXXXX")
	docs := make([]Document, len(d.Documents))
	copy(docs, d.Documents)
	d.Documents = docs
	return d
}

func maskTail(value, prefix string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("X", len(runes))
	}
	return prefix + string(runes[len(runes)-4:])
}
