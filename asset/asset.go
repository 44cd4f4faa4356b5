// Package asset caches the platform-side identifiers of uploaded media so
// a file that was uploaded once is referenced by id afterwards instead of
// being uploaded again.
//
// Assets are stored in a state.Store under the namespace
// "<platform>.assets.<resource>", for example "whatsapp.assets.image".
package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/parley/job"
	"github.com/xraph/parley/middleware"
	"github.com/xraph/parley/state"
)

// Asset is one cached upload.
type Asset struct {
	// Name is the caller's name for the asset, e.g. "welcome-banner".
	Name string `json:"name"`
	// ID is the identifier the platform assigned to the upload.
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
}

// Manager reads and writes the assets of one platform.
type Manager struct {
	store    state.Store
	platform string
	now      func() time.Time
}

// NewManager returns a Manager for platform backed by store.
func NewManager(store state.Store, platform string) *Manager {
	return &Manager{store: store, platform: platform, now: time.Now}
}

// Platform returns the platform the manager namespaces under.
func (m *Manager) Platform() string { return m.platform }

// Namespace returns the state namespace used for resource.
func (m *Manager) Namespace(resource string) string {
	return m.platform + ".assets." + resource
}

// Get returns the asset saved under name.
func (m *Manager) Get(ctx context.Context, resource, name string) (Asset, bool, error) {
	return state.GetJSON[Asset](ctx, m.store, m.Namespace(resource), name)
}

// ID returns the platform id of the asset saved under name, or "" when
// none is cached.
func (m *Manager) ID(ctx context.Context, resource, name string) (string, error) {
	a, ok, err := m.Get(ctx, resource, name)
	if err != nil || !ok {
		return "", err
	}
	return a.ID, nil
}

// Save records id as the platform id of name, replacing any earlier
// upload. It reports whether an earlier entry was replaced.
func (m *Manager) Save(ctx context.Context, resource, name, id string) (bool, error) {
	if name == "" || id == "" {
		return false, fmt.Errorf("asset: save %s: empty name or id", m.Namespace(resource))
	}
	return state.SetJSON(ctx, m.store, m.Namespace(resource), name, Asset{
		Name:    name,
		ID:      id,
		SavedAt: m.now().UTC(),
	})
}

// Remove forgets the asset saved under name.
func (m *Manager) Remove(ctx context.Context, resource, name string) (bool, error) {
	return m.store.Delete(ctx, m.Namespace(resource), name)
}

// All returns every asset of resource keyed by name.
func (m *Manager) All(ctx context.Context, resource string) (map[string]Asset, error) {
	ns := m.Namespace(resource)
	raw, err := m.store.GetAll(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Asset, len(raw))
	for name, b := range raw {
		var a Asset
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, fmt.Errorf("asset: decode %s/%s: %w", ns, name, err)
		}
		out[name] = a
	}
	return out, nil
}

// Job annotations read by Record.
const (
	MetaResource = "asset.resource"
	MetaName     = "asset.name"
)

// Annotate marks j so that Record saves the id its call produces as the
// asset name of resource.
func Annotate(j *job.Job, resource, name string) {
	j.SetMeta(MetaResource, resource)
	j.SetMeta(MetaName, name)
}

// IDFunc extracts the platform id of an uploaded asset from a successful
// call. Returning "" skips the call.
type IDFunc func(c *middleware.Call, res job.Result) string

// Record returns middleware that saves the platform id of every successful
// call made for an annotated job. Failures to save are logged and do not
// fail the call.
func Record(m *Manager, idOf IDFunc, logger *slog.Logger) middleware.Middleware {
	return func(ctx context.Context, c *middleware.Call, next middleware.Handler) (job.Result, error) {
		res, err := next(ctx)
		if err != nil || c.Job == nil {
			return res, err
		}
		resource, name := c.Job.Meta[MetaResource], c.Job.Meta[MetaName]
		if resource == "" || name == "" {
			return res, nil
		}
		assetID := idOf(c, res)
		if assetID == "" {
			return res, nil
		}
		if _, saveErr := m.Save(ctx, resource, name, assetID); saveErr != nil {
			logger.Warn("asset save failed",
				slog.String("platform", m.platform),
				slog.String("resource", resource),
				slog.String("name", name),
				slog.String("error", saveErr.Error()),
			)
		}
		return res, nil
	}
}
