package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/db"
)

const (
	phaseTransitioning = "transitioning"
	phaseLoaded        = "loaded"
)

// Gorm persists handoff data to Postgres.
type Gorm struct {
	conn    *gorm.DB
	catalog *appearance.Catalog
}

func NewGorm(conn *gorm.DB, catalog *appearance.Catalog) *Gorm {
	if catalog == nil {
		catalog = appearance.DefaultCatalog()
	}
	return &Gorm{conn: conn, catalog: catalog}
}

func (g *Gorm) ensureSession(tx *gorm.DB, key SessionKey) (db.Session, error) {
	var s db.Session
	err := tx.Where(db.Session{SessionKey: key.Session}).
		Attrs(db.Session{Code: key.Code, Phase: phaseTransitioning}).
		FirstOrCreate(&s).Error
	return s, err
}

func (g *Gorm) CommitParticipant(ctx context.Context, key SessionKey, p Participant) error {
	indices := p.Appearance
	if indices == nil {
		indices = appearance.Encoding{}
	}
	data, err := json.Marshal(indices)
	if err != nil {
		return err
	}
	return g.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := g.ensureSession(tx, key)
		if err != nil {
			return fmt.Errorf("ensure session %s: %w", key.Code, err)
		}
		row := db.Participant{
			SessionID:  s.ID,
			ExternalID: p.ID,
			Name:       p.Name,
			Appearance: datatypes.JSON(data),
			Position:   p.Position,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "appearance", "position", "updated_at"}),
		}).Create(&row).Error
	})
}

func (g *Gorm) MarkLoaded(ctx context.Context, key SessionKey, ids []string) error {
	return g.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := g.ensureSession(tx, key)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(&db.Session{}).Where("id = ?", s.ID).
			Updates(map[string]any{"phase": phaseLoaded, "loaded_at": now}).Error
	})
}

func (g *Gorm) Lookup(ctx context.Context, code, id string) (Participant, error) {
	conn := g.conn.WithContext(ctx)
	newest := conn.Model(&db.Session{}).Select("MAX(id)").Where("code = ?", code)

	var row db.Participant
	err := conn.
		Where("participants.session_id = (?) AND participants.external_id = ?", newest, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultParticipant(id, g.catalog), nil
	}
	if err != nil {
		return Participant{}, err
	}

	var enc appearance.Encoding
	if err := json.Unmarshal(row.Appearance, &enc); err != nil {
		return Participant{}, fmt.Errorf("decode appearance for %s: %w", id, err)
	}
	if enc.IsZero() {
		enc = g.catalog.Default()
	}
	return Participant{ID: id, Name: row.Name, Appearance: enc, Position: row.Position, Known: true}, nil
}
