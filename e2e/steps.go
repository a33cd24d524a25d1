package e2e

import (
	"github.com/cucumber/godog"

	"kycgate/e2e/steps/auth"
	"kycgate/e2e/steps/common"
	"kycgate/e2e/steps/kyc"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (response assertions)
	common.RegisterSteps(ctx, tc)

	// Register account steps
	auth.RegisterSteps(ctx, tc)

	// Register KYC submission, upload and review steps
	kyc.RegisterSteps(ctx, tc)
}
