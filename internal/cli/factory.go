package cli

import (
	"context"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	rodAdapter "github.com/aretw0/waypoint/pkg/adapters/rod"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/session"
)

// MirrorFactory builds sessions over in-memory pages. The host mirrors its
// DOM and routes into them through the HTTP API.
func (s *Stack) MirrorFactory() session.Factory {
	return func(ctx context.Context, id string, opts ...waypoint.Option) (*session.Session, error) {
		doc := memory.NewDocument()
		nav := memory.NewNavigator("/")
		eng, err := s.newEngine(ctx, id, doc, nav, opts)
		if err != nil {
			return nil, err
		}
		return &session.Session{ID: id, Engine: eng, Document: doc, Navigator: nav}, nil
	}
}

// BrowserFactory builds one browser tab per session, opened at url.
func (s *Stack) BrowserFactory(browser *rodAdapter.Browser, url string) session.Factory {
	return func(ctx context.Context, id string, opts ...waypoint.Option) (*session.Session, error) {
		page, err := browser.Open(context.WithoutCancel(ctx), url, rodAdapter.WithLogger(s.Logger.With("session_id", id)))
		if err != nil {
			return nil, err
		}
		eng, err := s.newEngine(ctx, id, page, page, opts)
		if err != nil {
			_ = page.Close()
			return nil, err
		}
		return &session.Session{ID: id, Engine: eng, Document: page, Navigator: page, OnClose: page.Close}, nil
	}
}

func (s *Stack) newEngine(ctx context.Context, id string, doc ports.Document, nav ports.Navigator, extra []waypoint.Option) (*waypoint.Engine, error) {
	opts := append(s.EngineOptions(), waypoint.WithSessionID(id))
	opts = append(opts, extra...)
	return waypoint.New(ctx, s.Config.Tour, doc, nav, opts...)
}
