package models

import (
	"time"

	"github.com/shopspring/decimal"

	dErrors "kycgate/pkg/domain-errors"
)

// Data is one KYC submission plus the review metadata layered on top of it.
// A new submission replaces everything except Documents.
type Data struct {
	// Personal
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender,omitempty"`
	Nationality string `json:"nationality"`

	// Contact
	PhoneNumber  string `json:"phone_number"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`

	// Identity
	PANNumber          string `json:"pan_number,omitempty"`
	AadhaarNumber      string `json:"aadhaar_number,omitempty"`
	GovernmentIDType   string `json:"government_id_type"`
	GovernmentIDNumber string `json:"government_id_number"`

	// Financial, all optional. IFSC is stored as given.
	AnnualIncome      *decimal.Decimal `json:"annual_income,omitempty"`
	EmploymentStatus  string           `json:"employment_status,omitempty"`
	EmployerName      string           `json:"employer_name,omitempty"`
	BankAccountNumber string           `json:"bank_account_number,omitempty"`
	BankName          string           `json:"bank_name,omitempty"`
	IFSCCode          string           `json:"ifsc_code,omitempty"`

	// Risk profile
	InvestmentExperience string `json:"investment_experience,omitempty"`
	RiskTolerance        string `json:"risk_tolerance,omitempty"`

	Documents []Document `json:"documents"`

	Status        Status     `json:"status"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewerNotes *string    `json:"reviewer_notes,omitempty"`
}

// DocumentType enumerates the artifacts a user may upload.
type DocumentType string

const (
	DocumentGovernmentID  DocumentType = "government_id"
	DocumentAddressProof  DocumentType = "address_proof"
	DocumentPANCard       DocumentType = "pan_card"
	DocumentBankStatement DocumentType = "bank_statement"
	DocumentIncomeProof   DocumentType = "income_proof"
)

var documentTypes = map[DocumentType]struct{}{
	DocumentGovernmentID:  {},
	DocumentAddressProof:  {},
	DocumentPANCard:       {},
	DocumentBankStatement: {},
	DocumentIncomeProof:   {},
}

// ParseDocumentType validates s against the supported document types.
func ParseDocumentType(s string) (DocumentType, error) {
	dt := DocumentType(s)
	if _, ok := documentTypes[dt]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported document type: "+s)
	}
	return dt, nil
}

// VerificationPending is the status every document starts in.
const VerificationPending = "pending"

// Document is the metadata for one uploaded file. The content itself lives in
// the blob store under StoredName.
type Document struct {
	DocumentType       DocumentType `json:"document_type"`
	DocumentNumber     string       `json:"document_number,omitempty"`
	StoredName         string       `json:"stored_name"`
	FileReference      string       `json:"file_reference"`
	OriginalFilename   string       `json:"original_filename"`
	ContentType        string       `json:"content_type,omitempty"`
	SizeBytes          int64        `json:"size_bytes"`
	VerificationStatus string       `json:"verification_status"`
	UploadedAt         time.Time    `json:"uploaded_at"`
}
