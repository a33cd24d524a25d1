package auth

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	StatusCode() int
	GetResponseField(field string) (interface{}, error)
	SetAccessToken(token string)
	SetUserID(userID string)
	RememberUser(email, userID string)
}

const defaultPassword = "correct-horse-battery"

// RegisterSteps registers account-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I register with email "([^"]*)" and password "([^"]*)"$`, steps.register)
	ctx.Step(`^I log in with email "([^"]*)" and password "([^"]*)"$`, steps.login)
	ctx.Step(`^a registered user "([^"]*)"$`, steps.registeredUser)
	ctx.Step(`^I am logged in as "([^"]*)"$`, steps.loggedInAs)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) register(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/register", map[string]interface{}{
		"email":    email,
		"password": password,
	})
}

func (s *authSteps) login(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	})
}

func (s *authSteps) registeredUser(ctx context.Context, email string) error {
	if err := s.register(ctx, email, defaultPassword); err != nil {
		return err
	}
	if s.tc.StatusCode() != 201 {
		return fmt.Errorf("registration of %s failed with status %d", email, s.tc.StatusCode())
	}
	userID, err := s.tc.GetResponseField("user.id")
	if err != nil {
		return err
	}
	s.tc.RememberUser(email, userID.(string))
	return nil
}

func (s *authSteps) loggedInAs(ctx context.Context, email string) error {
	if err := s.registeredUser(ctx, email); err != nil {
		return err
	}
	if err := s.login(ctx, email, defaultPassword); err != nil {
		return err
	}
	if s.tc.StatusCode() != 200 {
		return fmt.Errorf("login of %s failed with status %d", email, s.tc.StatusCode())
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	userID, err := s.tc.GetResponseField("user.id")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token.(string))
	s.tc.SetUserID(userID.(string))
	return nil
}
