package kyc

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	AdminPUT(path string, body interface{}) error
	AdminGET(path string) error
	Upload(path, filename string, content []byte, fields map[string]string) error
	GetResponseField(field string) (interface{}, error)
	AuthHeaders() map[string]string
	GetUserID() string
	UserIDFor(email string) string
}

// RegisterSteps registers KYC step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &kycSteps{tc: tc}

	// Submission and status
	ctx.Step(`^I submit valid KYC data$`, steps.submitValid)
	ctx.Step(`^I submit valid KYC data with "([^"]*)" set to "([^"]*)"$`, steps.submitWithOverride)
	ctx.Step(`^I request my KYC status$`, steps.requestMyStatus)
	ctx.Step(`^I request the KYC status of "([^"]*)"$`, steps.requestStatusOf)

	// Documents
	ctx.Step(`^I upload "([^"]*)" as "([^"]*)"$`, steps.upload)
	ctx.Step(`^the stored name should end with "([^"]*)"$`, steps.storedNameShouldEndWith)
	ctx.Step(`^I should have (\d+) documents? on file$`, steps.shouldHaveDocuments)

	// Administration
	ctx.Step(`^the admin sets my KYC status to "([^"]*)"$`, steps.adminSetsMyStatus)
	ctx.Step(`^the admin sets the KYC status of an unknown user to "([^"]*)"$`, steps.adminSetsUnknownStatus)
	ctx.Step(`^the admin lists pending reviews$`, steps.adminListsPending)
	ctx.Step(`^I list pending reviews without the admin token$`, steps.listPendingWithoutToken)
	ctx.Step(`^my audit trail should list "([^"]*)"$`, steps.auditTrailShouldList)
}

type kycSteps struct {
	tc TestContext
}

func validKYC() map[string]interface{} {
	return map[string]interface{}{
		"first_name":           "Asha",
		"last_name":            "Rao",
		"date_of_birth":        "1990-04-12",
		"nationality":          "Indian",
		"phone_number":         "+91 98765-43210",
		"address_line1":        "12 MG Road",
		"city":                 "Bengaluru",
		"state":                "Karnataka",
		"postal_code":          "560001",
		"country":              "India",
		"pan_number":           "ABCDE1234F",
		"government_id_type":   "passport",
		"government_id_number": "P1234567",
	}
}

func (s *kycSteps) submitValid(ctx context.Context) error {
	return s.tc.POST("/auth/kyc/submit", validKYC())
}

func (s *kycSteps) submitWithOverride(ctx context.Context, field, value string) error {
	body := validKYC()
	body[field] = value
	return s.tc.POST("/auth/kyc/submit", body)
}

func (s *kycSteps) requestMyStatus(ctx context.Context) error {
	return s.tc.GET("/auth/kyc/status/"+s.tc.GetUserID(), s.tc.AuthHeaders())
}

func (s *kycSteps) requestStatusOf(ctx context.Context, email string) error {
	userID := s.tc.UserIDFor(email)
	if userID == "" {
		return fmt.Errorf("no registered user %s", email)
	}
	return s.tc.GET("/auth/kyc/status/"+userID, s.tc.AuthHeaders())
}

func (s *kycSteps) upload(ctx context.Context, filename, documentType string) error {
	return s.tc.Upload("/auth/kyc/upload-document", filename, []byte("%PDF-1.7 test document"),
		map[string]string{"document_type": documentType})
}

func (s *kycSteps) storedNameShouldEndWith(ctx context.Context, suffix string) error {
	value, err := s.tc.GetResponseField("stored_name")
	if err != nil {
		return err
	}
	name, _ := value.(string)
	if !strings.HasSuffix(name, suffix) {
		return fmt.Errorf("expected stored name %q to end with %q", name, suffix)
	}
	return nil
}

func (s *kycSteps) shouldHaveDocuments(ctx context.Context, expected int) error {
	value, err := s.tc.GetResponseField("kyc_data.documents")
	if err != nil {
		return err
	}
	docs, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("documents is not a list: %v", value)
	}
	if len(docs) != expected {
		return fmt.Errorf("expected %d documents, got %d", expected, len(docs))
	}
	return nil
}

func (s *kycSteps) adminSetsMyStatus(ctx context.Context, status string) error {
	return s.tc.AdminPUT("/auth/kyc/update-status", map[string]interface{}{
		"user_id":    s.tc.GetUserID(),
		"new_status": status,
	})
}

func (s *kycSteps) adminSetsUnknownStatus(ctx context.Context, status string) error {
	return s.tc.AdminPUT("/auth/kyc/update-status", map[string]interface{}{
		"user_id":    uuid.NewString(),
		"new_status": status,
	})
}

func (s *kycSteps) adminListsPending(ctx context.Context) error {
	return s.tc.AdminGET("/auth/kyc/pending-reviews")
}

func (s *kycSteps) listPendingWithoutToken(ctx context.Context) error {
	return s.tc.GET("/auth/kyc/pending-reviews", s.tc.AuthHeaders())
}

func (s *kycSteps) auditTrailShouldList(ctx context.Context, expected string) error {
	if err := s.tc.AdminGET("/auth/kyc/audit/" + s.tc.GetUserID()); err != nil {
		return err
	}
	value, err := s.tc.GetResponseField("entries")
	if err != nil {
		return err
	}
	entries, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("entries is not a list: %v", value)
	}
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		entry, _ := e.(map[string]interface{})
		action, _ := entry["action"].(string)
		actions = append(actions, action)
	}
	if got := strings.Join(actions, ","); got != expected {
		return fmt.Errorf("expected audit trail %q, got %q", expected, got)
	}
	return nil
}
