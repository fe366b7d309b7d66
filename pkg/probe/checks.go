package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stilllift/pkg/assets"
	"stilllift/pkg/content"
)

// Pinger is satisfied by *db.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker is satisfied by asset sources that can report reachability.
type Checker interface {
	Check(ctx context.Context) error
}

// SpeechStatus is satisfied by *speech.Engine.
type SpeechStatus interface {
	Available() bool
}

// Database fails when the database does not answer.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check: func(ctx context.Context) error {
			return p.PingContext(ctx)
		},
	}
}

// Library reports structural problems in the message library. Validation
// is advisory, so the probe is never critical.
func Library(lib *content.Library) Probe {
	return Probe{
		Name: "Content Library",
		Check: func(ctx context.Context) error {
			res := lib.Validate()
			if res.IsValid {
				return nil
			}
			return fmt.Errorf("%d problem(s): %s", len(res.Errors), strings.Join(res.Errors, "; "))
		},
	}
}

// AssetSource checks that the asset source is reachable and that the
// homepage track can be fetched.
func AssetSource(src assets.Source) Probe {
	return Probe{
		Name: "Audio Assets",
		Check: func(ctx context.Context) error {
			if c, ok := src.(Checker); ok {
				if err := c.Check(ctx); err != nil {
					return fmt.Errorf("%s source: %w", src.Name(), err)
				}
			}
			if _, err := src.Fetch(ctx, assets.HomepagePath); err != nil {
				if errors.Is(err, assets.ErrNotFound) {
					return fmt.Errorf("homepage track missing: %w", err)
				}
				return err
			}
			return nil
		},
	}
}

// Speech reports whether the speech fallback can be used at all.
func Speech(s SpeechStatus, fallbackEnabled bool) Probe {
	return Probe{
		Name: "Speech Synthesis",
		Check: func(ctx context.Context) error {
			if s != nil && s.Available() {
				return nil
			}
			if fallbackEnabled {
				return errors.New("tts fallback is enabled but no engine is configured")
			}
			return nil
		},
	}
}
