package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Loader reads a tour from a Loam repository: one document per step, ordered
// by document ID (name files 01-welcome.md, 02-deck.md, ...), plus an optional
// header document carrying a `tour` key.
type Loader struct {
	Repo   *loam.TypedRepository[StepMetadata]
	tourID string
}

// Option configures a Loader.
type Option func(*Loader)

// WithTourID sets the tour ID used when no header document names one.
func WithTourID(id string) Option {
	return func(l *Loader) {
		l.tourID = id
	}
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[StepMetadata], opts ...Option) *Loader {
	l := &Loader{Repo: repo}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only Loam repository at path and wraps it. The tour
// ID defaults to the directory name.
func Open(path string, opts ...Option) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numeric types consistent across markdown and JSON
	// documents; the loader never writes.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	opts = append([]Option{WithTourID(filepath.Base(absPath))}, opts...)
	return New(loam.NewTypedRepository[StepMetadata](repo), opts...), nil
}

// Load implements ports.DefinitionLoader.
func (l *Loader) Load(ctx context.Context) (*domain.Definition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	tour := TourMetadata{ID: l.tourID}
	seen := make(map[string]string)
	steps := make([]domain.Step, 0, len(docs))
	explicitLast := false

	for _, doc := range docs {
		if doc.Data.Tour != nil {
			if err := mapstructure.Decode(doc.Data.Tour, &tour); err != nil {
				return nil, fmt.Errorf("invalid tour header in %s: %w", doc.ID, err)
			}
			if tour.ID == "" {
				tour.ID = l.tourID
			}
			continue
		}

		id := doc.Data.ID
		if id == "" {
			id = doc.ID
		}
		id = trimExtension(id)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: step '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID

		full, err := l.Repo.Get(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", doc.ID, err)
		}
		explicitLast = explicitLast || full.Data.IsLastStep
		steps = append(steps, toStep(full.Data, full.Content))
	}

	// A directory of steps without an explicit terminal step ends at its last document.
	if !explicitLast && len(steps) > 0 {
		steps[len(steps)-1].IsLastStep = true
	}
	if tour.ID == "" {
		tour.ID = "tour"
	}

	def := domain.NewDefinition(tour.ID, steps)
	def.Title = tour.Title
	return def, nil
}

func toStep(meta StepMetadata, content string) domain.Step {
	return domain.Step{
		Title:             meta.Title,
		Target:            meta.Target,
		Content:           strings.TrimSpace(content),
		Placement:         domain.Placement(meta.Placement),
		Route:             meta.Route,
		NextRoute:         meta.NextRoute,
		IsLastStep:        meta.IsLastStep,
		RequiresExpansion: meta.RequiresExpansion,
		ExpansionTarget:   meta.ExpansionTarget,
		WaitForUserClick:  meta.WaitForUserClick,
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
