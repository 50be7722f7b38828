package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

const defaultPassword = "e2e-password-123"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	LastStatus() int
	LastBody() []byte
	GetResponseField(field string) (any, error)
	GetAccessToken() string
	SetAccessToken(token string)
	Remember(name, value string)
	Recall(name string) (string, error)
	Admin() (login, password string)
}

// RegisterSteps registers invitation, registration and session step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	// Invitation steps
	ctx.Step(`^the admin is logged in$`, steps.adminLogsIn)
	ctx.Step(`^the admin issues an invitation code$`, steps.adminIssuesCode)
	ctx.Step(`^the admin issues an invitation code expiring in (\d+) days?$`, steps.adminIssuesCodeWithHorizon)
	ctx.Step(`^I POST an empty invitation request$`, steps.postInvitationRequest)

	// Registration steps
	ctx.Step(`^"([^"]*)" registers with the invitation code$`, steps.registerWithCode)
	ctx.Step(`^"([^"]*)" registers with invitation code "([^"]*)"$`, steps.registerWithLiteralCode)
	ctx.Step(`^a registered user "([^"]*)"$`, steps.registeredUser)

	// Session steps
	ctx.Step(`^I log in as "([^"]*)"$`, steps.logIn)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.logInWithPassword)
	ctx.Step(`^I act as "([^"]*)"$`, steps.actAs)
	ctx.Step(`^I log out$`, steps.logOut)
}

type authSteps struct {
	tc TestContext
}

// login maps a scenario name to a login unique to this run, so scenarios can
// be replayed against a server that keeps its data.
func (s *authSteps) login(name string) string {
	if v, err := s.tc.Recall("login:" + name); err == nil {
		return v
	}
	v := name + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	s.tc.Remember("login:"+name, v)
	return v
}

func (s *authSteps) adminLogsIn(ctx context.Context) error {
	login, password := s.tc.Admin()
	s.tc.SetAccessToken("")
	if err := s.tc.POST("/login", map[string]string{"login": login, "password": password}); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("admin login failed with %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	return s.keepToken("admin")
}

func (s *authSteps) adminIssuesCode(ctx context.Context) error {
	return s.issue(nil)
}

func (s *authSteps) adminIssuesCodeWithHorizon(ctx context.Context, days int) error {
	return s.issue(map[string]int{"expires_in_days": days})
}

func (s *authSteps) postInvitationRequest(ctx context.Context) error {
	return s.tc.POST("/generate_code", nil)
}

func (s *authSteps) issue(body any) error {
	token, err := s.tc.Recall("token:admin")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	if err := s.tc.POST("/generate_code", body); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return nil
	}
	code, err := s.tc.GetResponseField("code")
	if err != nil {
		return err
	}
	s.tc.Remember("invitation_code", fmt.Sprint(code))
	return nil
}

func (s *authSteps) registerWithCode(ctx context.Context, name string) error {
	code, err := s.tc.Recall("invitation_code")
	if err != nil {
		return err
	}
	return s.registerWithLiteralCode(ctx, name, code)
}

func (s *authSteps) registerWithLiteralCode(ctx context.Context, name, code string) error {
	s.tc.SetAccessToken("")
	return s.tc.POST("/register", map[string]string{
		"login":           s.login(name),
		"password":        defaultPassword,
		"invitation_code": code,
	})
}

func (s *authSteps) registeredUser(ctx context.Context, name string) error {
	if err := s.adminLogsIn(ctx); err != nil {
		return err
	}
	if err := s.adminIssuesCode(ctx); err != nil {
		return err
	}
	if err := s.registerWithCode(ctx, name); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return fmt.Errorf("registering %q failed with %d: %s", name, s.tc.LastStatus(), s.tc.LastBody())
	}
	return s.logIn(ctx, name)
}

func (s *authSteps) logIn(ctx context.Context, name string) error {
	return s.logInWithPassword(ctx, name, defaultPassword)
}

func (s *authSteps) logInWithPassword(ctx context.Context, name, password string) error {
	s.tc.SetAccessToken("")
	if err := s.tc.POST("/login", map[string]string{"login": s.login(name), "password": password}); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return nil
	}
	return s.keepToken(name)
}

func (s *authSteps) keepToken(name string) error {
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	s.tc.Remember("token:"+name, fmt.Sprint(token))
	return nil
}

func (s *authSteps) actAs(ctx context.Context, name string) error {
	token, err := s.tc.Recall("token:" + name)
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	return nil
}

func (s *authSteps) logOut(ctx context.Context) error {
	return s.tc.POST("/logout", nil)
}
