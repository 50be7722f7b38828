package e2e

import (
	"github.com/cucumber/godog"

	"cliquey/e2e/steps/auth"
	"cliquey/e2e/steps/common"
	"cliquey/e2e/steps/profile"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register invitation, registration and session steps
	auth.RegisterSteps(ctx, tc)

	// Register profile and rating steps
	profile.RegisterSteps(ctx, tc)
}
