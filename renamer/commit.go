package renamer

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/hobeone/epnamer/db"
	"github.com/hobeone/epnamer/storage"
	"github.com/hobeone/epnamer/undo"
)

// ErrUnconfirmed is returned by Commit when asked to rename without an undo
// script and without confirmation.
var ErrUnconfirmed = errors.New("renaming without an undo script must be confirmed")

// ErrAlreadyReverted is returned when reverting a run twice.
var ErrAlreadyReverted = errors.New("run was already reverted")

// CommitOptions controls how Commit records a run.
type CommitOptions struct {
	// UndoScript is the path of the undo script to write.  Empty means none.
	UndoScript string
	Format     undo.Format
	// Confirmed allows renaming without an undo script.
	Confirmed bool
	// History, when set, stores the run and its undo records.
	History *db.Handle
}

// Run is the outcome of a Commit.
type Run struct {
	ID         string
	UndoScript string
	Result     *Result
}

// Commit executes rm, writing undo records to the undo script and run
// history as configured.  The returned Run is non nil even when the
// execution fails part way.
func Commit(broker *storage.Broker, rm *RenameMap, opts CommitOptions) (*Run, error) {
	if opts.UndoScript == "" && !opts.Confirmed {
		return nil, ErrUnconfirmed
	}
	run := &Run{ID: uuid.NewString(), UndoScript: opts.UndoScript}

	var sinks []undo.Sink
	if opts.UndoScript != "" {
		f, err := broker.Create(opts.UndoScript)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if opts.Format == undo.Shell {
			if err := broker.Fs.Chmod(opts.UndoScript, 0755); err != nil {
				glog.Warningf("Couldn't make %s executable: %s", opts.UndoScript, err)
			}
		}
		sw, err := undo.NewScriptWriter(f, opts.Format)
		if err != nil {
			return nil, fmt.Errorf("error writing undo script %s: %w", opts.UndoScript, err)
		}
		sinks = append(sinks, sw)
	}

	if opts.History != nil {
		err := opts.History.CreateRun(&db.RenameRun{
			ID:         run.ID,
			ShowName:   rm.ShowName,
			UndoScript: opts.UndoScript,
			Planned:    rm.Len(),
		})
		if err != nil {
			return nil, fmt.Errorf("error recording run: %w", err)
		}
		sinks = append(sinks, opts.History.NewRunRecorder(run.ID))
	}

	glog.Infof("Starting run %s: %d renames for %s", run.ID, rm.Len(), rm.ShowName)
	res, err := NewExecutor(broker).Execute(rm, undo.MultiSink(sinks...))
	run.Result = res

	if opts.History != nil {
		status := db.RunComplete
		if err != nil {
			status = db.RunFailed
		}
		if ferr := opts.History.FinishRun(run.ID, status, err); ferr != nil {
			glog.Errorf("Error finishing run %s: %s", run.ID, ferr)
		}
	}
	return run, err
}

// Revert undoes a run recorded in h, renaming its files back in reverse
// order.  The revert is itself recorded as a new run.
func Revert(broker *storage.Broker, h *db.Handle, runID string, opts CommitOptions) (*Run, error) {
	old, err := h.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if old.Status == db.RunReverted {
		return nil, ErrAlreadyReverted
	}

	rm := Reverse(old.UndoRecords())
	rm.ShowName = old.ShowName
	opts.History = h
	opts.Confirmed = true

	run, err := Commit(broker, rm, opts)
	if err != nil {
		return run, err
	}
	if err := h.MarkReverted(runID, run.ID); err != nil {
		return run, fmt.Errorf("error marking run %s reverted: %w", runID, err)
	}
	return run, nil
}
