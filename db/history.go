package db

import (
	"fmt"
	"time"

	"github.com/hobeone/epnamer/undo"
	"github.com/jinzhu/gorm"
)

// Rename run states
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
	RunReverted = "reverted"
)

// RenameRun is one execution of a rename mapping.
type RenameRun struct {
	ID         string `gorm:"primary_key"`
	ShowName   string
	Status     string
	UndoScript string
	Error      string
	Planned    int
	Records    []RenameRecord
	RevertedBy string
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RenameRecord is the undo record of one completed rename.
type RenameRecord struct {
	ID          int64 `gorm:"column:id; primary_key:yes"`
	RenameRunID string
	Seq         int
	From        string `gorm:"column:from_path"`
	To          string `gorm:"column:to_path"`
	CreatedAt   time.Time
}

// BeforeSave validates the run.
func (r *RenameRun) BeforeSave() error {
	if r.ID == "" {
		return fmt.Errorf("RenameRun ID can not be empty")
	}
	return nil
}

// AfterFind updates all times to UTC because SQLite driver sets everything to local
func (r *RenameRun) AfterFind() error {
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.FinishedAt != nil {
		t := r.FinishedAt.UTC()
		r.FinishedAt = &t
	}
	return nil
}

// UndoRecords converts the run's records to undo records in execution order.
func (r *RenameRun) UndoRecords() []undo.Record {
	recs := make([]undo.Record, len(r.Records))
	for i, rec := range r.Records {
		recs[i] = undo.Record{From: rec.From, To: rec.To}
	}
	return recs
}

// CreateRun adds a new run to the database.
func (h *Handle) CreateRun(r *RenameRun) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	return h.db.Create(r).Error
}

// AddRenameRecord appends an undo record to the run with the given id.
func (h *Handle) AddRenameRecord(runID string, seq int, rec undo.Record) error {
	return h.db.Create(&RenameRecord{
		RenameRunID: runID,
		Seq:         seq,
		From:        rec.From,
		To:          rec.To,
	}).Error
}

// FinishRun marks a run as done with the given status.  A non nil runErr is
// stored with it.
func (h *Handle) FinishRun(runID, status string, runErr error) error {
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	return h.db.Model(&RenameRun{ID: runID}).Updates(map[string]interface{}{
		"status":      status,
		"error":       errStr,
		"finished_at": gorm.NowFunc(),
	}).Error
}

// MarkReverted records that run runID was undone by run revertedBy.
func (h *Handle) MarkReverted(runID, revertedBy string) error {
	return h.db.Model(&RenameRun{ID: runID}).Updates(map[string]interface{}{
		"status":      RunReverted,
		"reverted_by": revertedBy,
	}).Error
}

// GetRuns returns the most recent runs, newest first, without their records.
func (h *Handle) GetRuns(limit int) ([]RenameRun, error) {
	var runs []RenameRun
	err := h.db.Order("created_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRun returns the run with the given id and its records in execution
// order.
func (h *Handle) GetRun(id string) (*RenameRun, error) {
	var run RenameRun
	err := h.db.Preload("Records", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq asc")
	}).Where("id = ?", id).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RunRecorder is an undo.Sink writing each record to the run history as it
// happens.
type RunRecorder struct {
	h     *Handle
	runID string
	seq   int
}

// NewRunRecorder returns a Sink appending to run runID.
func (h *Handle) NewRunRecorder(runID string) *RunRecorder {
	return &RunRecorder{h: h, runID: runID}
}

// Record implements undo.Sink.
func (r *RunRecorder) Record(rec undo.Record) error {
	r.seq++
	if err := r.h.AddRenameRecord(r.runID, r.seq, rec); err != nil {
		return fmt.Errorf("error recording rename history: %w", err)
	}
	return nil
}
