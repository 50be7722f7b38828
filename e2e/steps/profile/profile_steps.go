package profile

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	LastStatus() int
	LastBody() []byte
	GetResponseField(field string) (any, error)
	Remember(name, value string)
	Recall(name string) (string, error)
}

// RegisterSteps registers profile and rating step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &profileSteps{tc: tc}

	ctx.Step(`^I create a profile named "([^"]*)" with bio "([^"]*)"$`, steps.createProfile)
	ctx.Step(`^I edit the profile name to "([^"]*)"$`, steps.editProfile)
	ctx.Step(`^I delete the profile$`, steps.deleteProfile)
	ctx.Step(`^I view the profile$`, steps.viewProfile)
	ctx.Step(`^I view the profile (\d+) times$`, steps.viewProfileTimes)
	ctx.Step(`^I rate the profile (-?\d+)$`, steps.rateProfile)
	ctx.Step(`^I search profiles for "([^"]*)"$`, steps.search)
	ctx.Step(`^the search results should include the profile$`, steps.searchIncludesProfile)
}

type profileSteps struct {
	tc TestContext
}

func (s *profileSteps) createProfile(ctx context.Context, name, bio string) error {
	if err := s.tc.POST("/profile/create", map[string]string{"name": name, "bio": bio}); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return fmt.Errorf("create profile failed with %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	for _, field := range []string{"id", "public_id"} {
		v, err := s.tc.GetResponseField(field)
		if err != nil {
			return err
		}
		s.tc.Remember("profile:"+field, fmt.Sprint(v))
	}
	return nil
}

func (s *profileSteps) profileID(field string) (string, error) {
	return s.tc.Recall("profile:" + field)
}

func (s *profileSteps) editProfile(ctx context.Context, name string) error {
	profileID, err := s.profileID("id")
	if err != nil {
		return err
	}
	return s.tc.POST("/profile/"+profileID+"/edit", map[string]string{"name": name})
}

func (s *profileSteps) deleteProfile(ctx context.Context) error {
	profileID, err := s.profileID("id")
	if err != nil {
		return err
	}
	return s.tc.POST("/profile/"+profileID+"/delete", nil)
}

func (s *profileSteps) viewProfile(ctx context.Context) error {
	publicID, err := s.profileID("public_id")
	if err != nil {
		return err
	}
	return s.tc.GET("/profile/" + publicID)
}

func (s *profileSteps) viewProfileTimes(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.viewProfile(ctx); err != nil {
			return err
		}
		if s.tc.LastStatus() != http.StatusOK {
			return fmt.Errorf("view %d failed with %d", i+1, s.tc.LastStatus())
		}
	}
	return nil
}

func (s *profileSteps) rateProfile(ctx context.Context, rating int) error {
	publicID, err := s.profileID("public_id")
	if err != nil {
		return err
	}
	return s.tc.POST("/profile/"+publicID+"/rate", map[string]int{"rating": rating})
}

func (s *profileSteps) search(ctx context.Context, q string) error {
	return s.tc.GET("/profiles/search?q=" + url.QueryEscape(q) + "&limit=100")
}

func (s *profileSteps) searchIncludesProfile(ctx context.Context) error {
	publicID, err := s.profileID("public_id")
	if err != nil {
		return err
	}
	profiles, err := s.tc.GetResponseField("profiles")
	if err != nil {
		return err
	}
	list, ok := profiles.([]any)
	if !ok {
		return fmt.Errorf("profiles is not a list: %s", s.tc.LastBody())
	}
	for _, p := range list {
		if m, ok := p.(map[string]any); ok && m["public_id"] == publicID {
			return nil
		}
	}
	return fmt.Errorf("profile %s not in search results", publicID)
}
