package session

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/roster"
)

var ErrNotFound = errors.New("participant not found")
var ErrInvalidName = errors.New("invalid display name")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Re-exported so callers can match every rejection from this package.
var (
	ErrDuplicateParticipant = roster.ErrDuplicateParticipant
	ErrCapacityExceeded     = roster.ErrCapacityExceeded
	ErrInvalidAppearance    = appearance.ErrInvalid
)

type Config struct {
	// RequireDetails makes AllReady also demand DetailsConfirmed on every record.
	RequireDetails bool
}

// Controller drives roster mutations for one lobby. Like roster.Store it
// expects a single goroutine to call it.
type Controller struct {
	store   *roster.Store
	catalog *appearance.Catalog
	cfg     Config
	log     *zap.Logger

	// Removals wait here until Flush so handlers iterating the roster in the
	// same step never see it shift underneath them.
	pending []string
	leaving map[string]struct{}
}

func NewController(store *roster.Store, catalog *appearance.Catalog, cfg Config, log *zap.Logger) *Controller {
	if catalog == nil {
		catalog = appearance.DefaultCatalog()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		store:   store,
		catalog: catalog,
		cfg:     cfg,
		log:     log,
		leaving: make(map[string]struct{}),
	}
}

func (c *Controller) Store() *roster.Store { return c.store }

func (c *Controller) Catalog() *appearance.Catalog { return c.catalog }

// Connect appends a default record for id. Ids already in the roster or
// waiting to be removed are ignored; hosts can see their own connect twice.
func (c *Controller) Connect(id string) error {
	if _, ok := c.leaving[id]; ok {
		c.log.Debug("connect ignored, participant is leaving", zap.String("participant", id))
		return fmt.Errorf("%w: %s is leaving", ErrDuplicateParticipant, id)
	}
	if err := c.store.Add(roster.NewRecord(id)); err != nil {
		switch {
		case errors.Is(err, roster.ErrDuplicateParticipant):
			c.log.Debug("duplicate connect ignored", zap.String("participant", id))
		case errors.Is(err, roster.ErrCapacityExceeded):
			c.log.Info("connect rejected, lobby full",
				zap.String("participant", id), zap.Int("capacity", c.store.Capacity()))
		}
		return err
	}
	c.log.Info("participant connected", zap.String("participant", id), zap.Int("roster", c.store.Len()))
	return nil
}

// Disconnect schedules id for removal at the next Flush.
func (c *Controller) Disconnect(id string) {
	if _, ok := c.leaving[id]; ok {
		return
	}
	if c.store.IndexOf(id) < 0 {
		return
	}
	c.leaving[id] = struct{}{}
	c.pending = append(c.pending, id)
}

// Flush applies deferred removals in the order they were requested.
func (c *Controller) Flush() int {
	removed := 0
	for len(c.pending) > 0 {
		id := c.pending[0]
		c.pending = c.pending[1:]
		delete(c.leaving, id)
		if c.store.RemoveByID(id) {
			removed++
			c.log.Info("participant disconnected", zap.String("participant", id), zap.Int("roster", c.store.Len()))
		}
	}
	return removed
}

// Tracked reports whether id has a record, including one pending removal.
func (c *Controller) Tracked(id string) bool {
	return c.store.IndexOf(id) >= 0
}

func (c *Controller) lookup(id string) (int, roster.Record, error) {
	if _, ok := c.leaving[id]; ok {
		return -1, roster.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	i := c.store.IndexOf(id)
	if i < 0 {
		return -1, roster.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec, _ := c.store.At(i)
	return i, rec, nil
}

// ToggleReady flips the ready flag. Replayed requests toggle again.
func (c *Controller) ToggleReady(id string) error {
	i, rec, err := c.lookup(id)
	if err != nil {
		c.log.Debug("toggle ready for unknown participant", zap.String("participant", id))
		return err
	}
	rec.Ready = !rec.Ready
	return c.store.ReplaceAt(i, rec)
}

// SubmitDetails validates and stores the participant's name and appearance.
// On any error the record is left untouched.
func (c *Controller) SubmitDetails(id, name, appearanceText string) error {
	i, rec, err := c.lookup(id)
	if err != nil {
		return err
	}
	clean, err := NormalizeName(name)
	if err != nil {
		return err
	}
	enc, err := c.catalog.Parse(appearanceText)
	if err != nil {
		c.log.Info("details rejected", zap.String("participant", id), zap.Error(err))
		return err
	}
	rec.Name = clean
	rec.Appearance = enc
	rec.DetailsConfirmed = true
	return c.store.ReplaceAt(i, rec)
}

// NormalizeName NFC-normalizes and trims name, then enforces the byte bound.
func NormalizeName(name string) (string, error) {
	clean := strings.TrimSpace(norm.NFC.String(name))
	if clean == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(clean) > roster.MaxNameBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidName, len(clean), roster.MaxNameBytes)
	}
	return clean, nil
}

// AllReady is true iff the roster is non-empty and every record is ready.
func (c *Controller) AllReady() bool {
	if c.store.Len() == 0 {
		return false
	}
	for i := 0; i < c.store.Len(); i++ {
		rec, _ := c.store.At(i)
		if !rec.Ready {
			return false
		}
		if c.cfg.RequireDetails && !rec.DetailsConfirmed {
			return false
		}
	}
	return true
}

func (c *Controller) Snapshot() []roster.Record { return c.store.Records() }

// Host returns the participant that joined first.
func (c *Controller) Host() (string, bool) {
	rec, ok := c.store.At(0)
	if !ok {
		return "", false
	}
	return rec.ID, true
}
