package web

import (
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/hobeone/epnamer/indexers"
	"github.com/hobeone/epnamer/renamer"
	"github.com/hobeone/epnamer/undo"
)

// GenerateRequest asks for the rename plan of a show's files.
type GenerateRequest struct {
	Paths             []string `json:"paths" binding:"required"`
	Show              string   `json:"show" binding:"required"`
	Patterns          []string `json:"patterns"`
	Template          string   `json:"template"`
	BareEpisodeDigits int      `json:"bare_episode_digits"`
	Refresh           bool     `json:"refresh"`
}

// JSONEntry is one planned rename.
type JSONEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	SizeHuman   string `json:"size_human"`
}

// JSONCollision is a destination left out of a plan.
type JSONCollision struct {
	Destination string   `json:"destination"`
	Sources     []string `json:"sources"`
	Existing    bool     `json:"existing"`
}

// GenerateResponse is a rename plan waiting for confirmation.
type GenerateResponse struct {
	ID         string          `json:"id"`
	Show       string          `json:"show"`
	Source     string          `json:"source"`
	Entries    []JSONEntry     `json:"entries"`
	Collisions []JSONCollision `json:"collisions"`
	UndoScript string          `json:"suggested_undo_script"`
}

// Generate builds a rename plan and keeps it for Rename.
func Generate(c *gin.Context) {
	s := c.MustGet("server").(*Server)
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		genError(c, http.StatusBadRequest, err.Error())
		return
	}

	r := renamer.Request{
		Roots:             req.Paths,
		ShowName:          req.Show,
		Patterns:          req.Patterns,
		Template:          req.Template,
		BareEpisodeDigits: req.BareEpisodeDigits,
		Refresh:           req.Refresh,
	}
	if len(r.Patterns) == 0 {
		r.Patterns = s.cfg.Naming.Patterns
	}
	if r.Template == "" {
		r.Template = s.cfg.Naming.Template
	}
	if r.BareEpisodeDigits == 0 {
		r.BareEpisodeDigits = s.cfg.Naming.BareEpisodeDigits
	}

	rm, err := renamer.Generate(c.Request.Context(), s.indexer, s.broker, r)
	if err != nil {
		var nf *indexers.NotFoundError
		var nm *renamer.NoMatchError
		switch {
		case errors.As(err, &nf), errors.As(err, &nm):
			genError(c, http.StatusNotFound, err.Error())
		default:
			glog.Errorf("Error generating renames for %s: %s", req.Show, err)
			genError(c, http.StatusBadRequest, err.Error())
		}
		return
	}

	id := uuid.NewString()
	s.addPlan(id, rm)

	resp := GenerateResponse{
		ID:         id,
		Show:       rm.ShowName,
		Source:     rm.Source,
		Entries:    make([]JSONEntry, 0, rm.Len()),
		Collisions: make([]JSONCollision, 0, len(rm.Collisions)),
		UndoScript: undo.SuggestedName(undo.DefaultFormat()),
	}
	for _, e := range rm.Sorted() {
		size := s.broker.Size(e.Source)
		resp.Entries = append(resp.Entries, JSONEntry{
			Source:      e.Source,
			Destination: e.Destination,
			Code:        e.Code.String(),
			Title:       e.Title,
			Size:        size,
			SizeHuman:   humanize.Bytes(uint64(size)),
		})
	}
	for _, col := range rm.Collisions {
		resp.Collisions = append(resp.Collisions, JSONCollision{
			Destination: col.Destination,
			Sources:     col.Sources,
			Existing:    col.Existing,
		})
	}
	success(c, resp)
}

// RenameRequest executes a plan made by Generate.
type RenameRequest struct {
	ID         string `json:"id" binding:"required"`
	UndoScript string `json:"undo_script"`
	Format     string `json:"format"`
	Confirm    bool   `json:"confirm"`
}

// JSONRunResult reports what a rename or undo did.
type JSONRunResult struct {
	RunID        string   `json:"run_id"`
	UndoScript   string   `json:"undo_script,omitempty"`
	Renamed      int      `json:"renamed"`
	Failed       string   `json:"failed,omitempty"`
	NotAttempted []string `json:"not_attempted,omitempty"`
}

func runResult(run *renamer.Run, err error) JSONRunResult {
	res := JSONRunResult{RunID: run.ID, UndoScript: run.UndoScript}
	if run.Result != nil {
		res.Renamed = len(run.Result.Renamed)
	}
	var rf *renamer.RenameFailure
	if errors.As(err, &rf) {
		res.Failed = rf.Entry.Source
		for _, e := range rf.NotAttempted {
			res.NotAttempted = append(res.NotAttempted, e.Source)
		}
	}
	return res
}

// Rename executes a generated plan.
func Rename(c *gin.Context) {
	s := c.MustGet("server").(*Server)
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		genError(c, http.StatusBadRequest, err.Error())
		return
	}
	format, err := undo.FormatFromString(req.Format)
	if err != nil {
		genError(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.getPlan(req.ID); !ok {
		genError(c, http.StatusNotFound, "Rename plan not found")
		return
	}
	if req.UndoScript == "" && !req.Confirm {
		genError(c, http.StatusBadRequest, renamer.ErrUnconfirmed.Error())
		return
	}
	p, ok := s.takePlan(req.ID)
	if !ok {
		genError(c, http.StatusNotFound, "Rename plan not found")
		return
	}

	run, err := renamer.Commit(s.broker, p.rm, renamer.CommitOptions{
		UndoScript: req.UndoScript,
		Format:     format,
		Confirmed:  req.Confirm,
		History:    s.dbh,
	})
	if run == nil {
		genError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"data":    runResult(run, err),
			"message": err.Error(),
			"result":  "failure",
		})
		return
	}
	success(c, runResult(run, nil))
}
