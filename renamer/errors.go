package renamer

import (
	"fmt"
	"strings"
)

// NoMatchError is returned when no file under the roots produced a rename.
type NoMatchError struct {
	Show  string
	Roots []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no files to rename for %q under %s", e.Show, strings.Join(e.Roots, ", "))
}

// Collision is a destination claimed by more than one source, or by a source
// while something else already exists there.
type Collision struct {
	Destination string
	Sources     []string
	// Existing is set when Destination is already present on disk.
	Existing bool
}

func (c Collision) String() string {
	if c.Existing {
		return fmt.Sprintf("%s already exists (wanted by %s)", c.Destination, strings.Join(c.Sources, ", "))
	}
	return fmt.Sprintf("%s wanted by %s", c.Destination, strings.Join(c.Sources, ", "))
}

// CollisionError reports the entries left out of a RenameMap because of
// collisions.
type CollisionError struct {
	Collisions []Collision
}

func (e *CollisionError) Error() string {
	if len(e.Collisions) == 1 {
		return "rename collision: " + e.Collisions[0].String()
	}
	parts := make([]string, len(e.Collisions))
	for i, c := range e.Collisions {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%d rename collisions: %s", len(e.Collisions), strings.Join(parts, "; "))
}

// RenameFailure stops a run.  Entries in Renamed were renamed before the
// failure and NotAttempted were never tried.  Nothing is rolled back.
type RenameFailure struct {
	Entry        Entry
	Err          error
	Renamed      []Entry
	NotAttempted []Entry
	// Unlogged is set when Entry was renamed but writing its undo record
	// failed.  Entry is then also the last element of Renamed.
	Unlogged bool
}

func (e *RenameFailure) Error() string {
	if e.Unlogged {
		return fmt.Sprintf("renamed %s to %s but couldn't record it in the undo log (%d renamed, %d not attempted): %s",
			e.Entry.Source, e.Entry.Destination, len(e.Renamed), len(e.NotAttempted), e.Err)
	}
	return fmt.Sprintf("error renaming %s to %s (%d renamed, %d not attempted): %s",
		e.Entry.Source, e.Entry.Destination, len(e.Renamed), len(e.NotAttempted), e.Err)
}

func (e *RenameFailure) Unwrap() error {
	return e.Err
}
