package renamer

import (
	"github.com/golang/glog"
	"github.com/hobeone/epnamer/storage"
	"github.com/hobeone/epnamer/undo"
)

// Executor performs the renames of a RenameMap.
type Executor struct {
	Broker *storage.Broker
}

// NewExecutor returns an Executor renaming through broker.
func NewExecutor(broker *storage.Broker) *Executor {
	return &Executor{Broker: broker}
}

// Result lists the renames an Execute call performed, in order.
type Result struct {
	Renamed []Entry
}

// Execute renames every entry of rm in order, one at a time.  After each
// rename the inverse is written to sink before moving on.  A nil sink
// renames without an undo log.
//
// The first failed rename or undo write stops the run with a
// *RenameFailure.  Completed renames are left in place.
func (e *Executor) Execute(rm *RenameMap, sink undo.Sink) (*Result, error) {
	res := &Result{}
	if rm == nil {
		return res, nil
	}
	if sink == nil {
		glog.Warningf("Renaming %d files without an undo log", rm.Len())
	}

	for i, entry := range rm.Entries {
		if err := e.Broker.Rename(entry.Source, entry.Destination); err != nil {
			glog.Errorf("Error renaming %s: %s", entry.Source, err)
			return res, &RenameFailure{
				Entry:        entry,
				Err:          err,
				Renamed:      res.Renamed,
				NotAttempted: rm.Entries[i+1:],
			}
		}
		res.Renamed = append(res.Renamed, entry)

		if sink == nil {
			continue
		}
		if err := sink.Record(undo.Record{From: entry.Destination, To: entry.Source}); err != nil {
			glog.Errorf("Error writing undo record for %s: %s", entry.Destination, err)
			return res, &RenameFailure{
				Entry:        entry,
				Err:          err,
				Renamed:      res.Renamed,
				NotAttempted: rm.Entries[i+1:],
				Unlogged:     true,
			}
		}
	}
	glog.Infof("Renamed %d files", len(res.Renamed))
	return res, nil
}

// Reverse builds the RenameMap undoing records, which must be in the order
// the renames happened.
func Reverse(records []undo.Record) *RenameMap {
	rm := &RenameMap{Entries: make([]Entry, 0, len(records))}
	for i := len(records) - 1; i >= 0; i-- {
		rm.Entries = append(rm.Entries, Entry{
			Source:      records[i].From,
			Destination: records[i].To,
		})
	}
	return rm
}
