package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/hobeone/epnamer/db"
	"github.com/hobeone/epnamer/renamer"
	"github.com/hobeone/epnamer/undo"
)

// JSONRun is a rename run from the history.
type JSONRun struct {
	ID           string       `json:"id"`
	Show         string       `json:"show"`
	Status       string       `json:"status"`
	Planned      int          `json:"planned"`
	UndoScript   string       `json:"undo_script"`
	Error        string       `json:"error"`
	RevertedBy   string       `json:"reverted_by"`
	Created      time.Time    `json:"created"`
	CreatedHuman string       `json:"created_human"`
	Finished     *time.Time   `json:"finished"`
	Records      []JSONRecord `json:"records,omitempty"`
}

// JSONRecord is one completed rename of a run.
type JSONRecord struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func jsonRun(r *db.RenameRun) JSONRun {
	j := JSONRun{
		ID:           r.ID,
		Show:         r.ShowName,
		Status:       r.Status,
		Planned:      r.Planned,
		UndoScript:   r.UndoScript,
		Error:        r.Error,
		RevertedBy:   r.RevertedBy,
		Created:      r.CreatedAt,
		CreatedHuman: humanize.Time(r.CreatedAt),
		Finished:     r.FinishedAt,
	}
	for _, rec := range r.Records {
		j.Records = append(j.Records, JSONRecord{From: rec.From, To: rec.To})
	}
	return j
}

// History lists recent rename runs, newest first.
func History(c *gin.Context) {
	s := c.MustGet("server").(*Server)
	limit := 50
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			genError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.dbh.GetRuns(limit)
	if err != nil {
		genError(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]JSONRun, len(runs))
	for i := range runs {
		out[i] = jsonRun(&runs[i])
	}
	success(c, out)
}

// HistoryRun returns one run with its undo records.
func HistoryRun(c *gin.Context) {
	s := c.MustGet("server").(*Server)
	run, err := s.dbh.GetRun(c.Param("id"))
	if err != nil {
		if db.IsNotFound(err) {
			genError(c, http.StatusNotFound, "Run not found")
			return
		}
		genError(c, http.StatusInternalServerError, err.Error())
		return
	}
	success(c, jsonRun(run))
}

// UndoRequest optionally asks for an undo script of the revert itself.
type UndoRequest struct {
	UndoScript string `json:"undo_script"`
	Format     string `json:"format"`
}

// UndoRun reverts a run from the history.
func UndoRun(c *gin.Context) {
	s := c.MustGet("server").(*Server)
	var req UndoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			genError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	format, err := undo.FormatFromString(req.Format)
	if err != nil {
		genError(c, http.StatusBadRequest, err.Error())
		return
	}

	run, err := renamer.Revert(s.broker, s.dbh, c.Param("id"), renamer.CommitOptions{
		UndoScript: req.UndoScript,
		Format:     format,
	})
	switch {
	case err == nil:
		success(c, runResult(run, nil))
	case db.IsNotFound(err):
		genError(c, http.StatusNotFound, "Run not found")
	case errors.Is(err, renamer.ErrAlreadyReverted):
		genError(c, http.StatusConflict, err.Error())
	case run != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"data":    runResult(run, err),
			"message": err.Error(),
			"result":  "failure",
		})
	default:
		genError(c, http.StatusInternalServerError, err.Error())
	}
}
