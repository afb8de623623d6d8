package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aretw0/waypoint/internal/validator"
	rodAdapter "github.com/aretw0/waypoint/pkg/adapters/rod"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// ErrValidationFailed is returned when the tour has problems.
var ErrValidationFailed = errors.New("tour validation failed")

// Validate checks the tour structure and, when pageURL is set, looks up the
// targets of the steps on that page's route in a real browser.
func (s *Stack) Validate(ctx context.Context, out io.Writer, pageURL string) error {
	def, err := s.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tour: %w", err)
	}
	res := def.Validate()
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  ✗ %v\n", e)
	}
	if !res.Valid {
		return fmt.Errorf("%w: %d structural problem(s)", ErrValidationFailed, len(res.Errors))
	}
	fmt.Fprintf(out, "tour %q: %d steps, structure ok\n", def.ID, def.Len())

	if pageURL == "" {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid page url: %w", err)
	}
	bc := s.Config.Browser
	browser, err := rodAdapter.Launch(ctx, rodAdapter.LaunchOptions{
		ControlURL: bc.ControlURL,
		Headless:   bc.Headless,
		Bin:        bc.Bin,
	}, s.Logger)
	if err != nil {
		return err
	}
	defer browser.Close()

	page, err := browser.Open(ctx, pageURL, rodAdapter.WithLogger(s.Logger))
	if err != nil {
		return err
	}
	defer page.Close()

	return s.checkTargets(ctx, out, page, def, u.Path)
}

func (s *Stack) checkTargets(ctx context.Context, out io.Writer, doc ports.Document, def *domain.Definition, route string) error {
	if route == "" {
		route = "/"
	}
	report, err := validator.CheckTargets(ctx, doc, def, validator.Options{
		Timeout: time.Duration(s.Config.Engine.ValidationTimeout),
		Route:   route,
		Logger:  s.Logger,
	})
	if err != nil {
		return err
	}
	for _, m := range report.Missing {
		fmt.Fprintf(out, "  ✗ step %d: target %q not found on %s\n", m.Index, m.Target, route)
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d of %d target(s) missing on %s", ErrValidationFailed, len(report.Missing), len(report.Checked), route)
	}
	fmt.Fprintf(out, "%d target(s) found on %s\n", len(report.Checked), route)
	return nil
}
