package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/jinzhu/gorm"
)

// Show is a cached episode guide for a show, stored under the (normalized)
// name it was looked up with.
type Show struct {
	ID                int64  `gorm:"column:id; primary_key:yes"`
	LookupName        string `sql:"not null"`
	Name              string `sql:"not null"`
	Indexer           string `sql:"not null"`
	IndexerID         string `gorm:"column:indexer_key"` // id to use when looking up with the indexer
	Episodes          []Episode
	LastIndexerUpdate time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Episode represents an individual episode of a Show
type Episode struct {
	ID       int64 `gorm:"column:id; primary_key:yes"`
	ShowID   int64
	Season   int64
	Episode  int64
	Absolute int64
	Name     string
}

// NormalizeName is the key shows are cached under.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// BeforeSave validates a show before writing it to the database
func (s *Show) BeforeSave() error {
	if s.LookupName == "" {
		return fmt.Errorf("Show LookupName can not be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("Show Name can not be empty")
	}
	if s.Indexer == "" {
		return fmt.Errorf("Indexer must be set")
	}
	return nil
}

// AfterFind updates all times to UTC because SQLite driver sets everything to local
func (s *Show) AfterFind() error {
	s.LastIndexerUpdate = s.LastIndexerUpdate.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return nil
}

// BeforeSave performs validation on the record before saving
func (e *Episode) BeforeSave() error {
	// Season 0 is used for Specials, Episode 0 for pilots and prequels.
	if e.Season < -1 || e.Episode < 0 {
		return errors.New("Episode numbers can not be negative")
	}
	return nil
}

// GetShowByLookupName returns the cached show (and its episodes, in guide order)
// stored for the given lookup name.
func (h *Handle) GetShowByLookupName(name string) (*Show, error) {
	var show Show
	err := h.db.Preload("Episodes", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).Where("lookup_name = ?", NormalizeName(name)).First(&show).Error
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// SaveShow stores s, replacing any show cached under the same lookup name along
// with all of its episodes.
func (h *Handle) SaveShow(s *Show) error {
	s.LookupName = NormalizeName(s.LookupName)
	tx := h.db.Begin()

	var old Show
	err := tx.Where("lookup_name = ?", s.LookupName).First(&old).Error
	switch {
	case err == nil:
		if err := tx.Where("show_id = ?", old.ID).Delete(Episode{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		s.ID = old.ID
		s.CreatedAt = old.CreatedAt
	case !gorm.IsRecordNotFoundError(err):
		tx.Rollback()
		return err
	}

	for i := range s.Episodes {
		s.Episodes[i].ID = 0
		s.Episodes[i].ShowID = s.ID
	}
	if err := tx.Save(s).Error; err != nil {
		glog.Errorf("Error saving show %s to the database: %s", s.Name, err)
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// DeleteShow removes the show cached for name.
func (h *Handle) DeleteShow(name string) error {
	show, err := h.GetShowByLookupName(name)
	if err != nil {
		return err
	}
	tx := h.db.Begin()
	if err := tx.Where("show_id = ?", show.ID).Delete(Episode{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(show).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
