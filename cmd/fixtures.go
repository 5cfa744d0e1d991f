// File: cmd/fixtures.go
package cmd

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/selenium-suite/internal/suite"
	"github.com/xkilldash9x/selenium-suite/internal/webdriver"
)

// smokeFixtureName exercises the session lifecycle of a remote end without
// any application under test: `run --fixture remote-smoke`.
const smokeFixtureName = "remote-smoke"

func init() {
	if err := suite.DefaultRegistry.Register(newSmokeFixture()); err != nil {
		panic(err)
	}
}

func newSmokeFixture() *suite.StaticFixture {
	return &suite.StaticFixture{
		FixtureName: smokeFixtureName,
		Settings:    suite.FixtureConfig{Groups: []string{"smoke"}},
		TestMethods: []suite.Method{
			{Name: "TestNavigateBlank", Run: smokeNavigate},
			{Name: "TestPageSource", DependsOn: []string{"TestNavigateBlank"}, Run: smokeSource},
			{Name: "TestScreenshot", DependsOn: []string{"TestNavigateBlank"}, Run: smokeScreenshot},
		},
	}
}

func smokeNavigate(ctx context.Context, s *webdriver.Session) error {
	if err := s.Navigate(ctx, "about:blank"); err != nil {
		return err
	}
	got, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if got != "about:blank" {
		return suite.Failf("current URL is %q after navigating to about:blank", got)
	}
	return nil
}

func smokeSource(ctx context.Context, s *webdriver.Session) error {
	if _, err := s.Source(ctx); err != nil {
		return fmt.Errorf("page source: %w", err)
	}
	return nil
}

func smokeScreenshot(ctx context.Context, s *webdriver.Session) error {
	png, err := s.Screenshot(ctx)
	if err != nil {
		return err
	}
	if len(png) == 0 {
		return suite.Failf("screenshot is empty")
	}
	return nil
}
