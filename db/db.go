package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/jinzhu/gorm"
	//import sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	gorm.NowFunc = func() time.Time {
		return time.Now().UTC()
	}
}

// Handle controls access to the database.
type Handle struct {
	db *gorm.DB
}

func setupDB(db *gorm.DB) error {
	tx := db.Begin()
	err := tx.AutoMigrate(&Show{}, &Episode{}, &RenameRun{}, &RenameRecord{}).Error
	if err != nil {
		tx.Rollback()
		return err
	}

	// Don't check errors on these because they'll usually already exist
	tx.Model(&Episode{}).AddIndex(
		"idx_show_season_ep", "show_id", "season", "episode",
	)
	tx.Model(&Show{}).AddUniqueIndex("idx_show_lookup_name", "lookup_name")
	tx.Model(&RenameRecord{}).AddIndex("idx_record_run_seq", "rename_run_id", "seq")
	return tx.Commit().Error
}

type logBridge struct{}

func (l logBridge) Print(v ...interface{}) {
	strs := make([]string, len(v))
	for i, val := range v {
		strs[i] = fmt.Sprintf("%v", val)
	}
	glog.Info(strings.Join(strs, " "))
}

func openDB(dbType string, dbArgs string, verbose bool) (*gorm.DB, error) {
	glog.Infof("Opening database %s:%s", dbType, dbArgs)
	d, err := gorm.Open(dbType, dbArgs)
	if err != nil {
		return nil, err
	}
	d.SingularTable(true)
	d.LogMode(verbose)
	d.SetLogger(logBridge{})
	// Actually test that we have a working connection
	if err = d.DB().Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func createAndOpenDb(dbPath string, verbose bool, memory bool) (*Handle, error) {
	mode := "rwc"
	if memory {
		mode = "memory"
	}
	constructedPath := fmt.Sprintf("file:%s?mode=%s&_loc=UTC", dbPath, mode)
	db, err := openDB("sqlite3", constructedPath, verbose)
	if err != nil {
		return nil, err
	}
	// Every connection to a memory database gets its own copy, and SQLite
	// only allows one writer anyway.
	db.DB().SetMaxOpenConns(1)
	if err := setupDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Handle{db: db}, nil
}

// NewDBHandle opens (creating if needed) the database at dbPath.
//
//	dbPath: the path to the database to use.
//	verbose: when true database accesses are logged
func NewDBHandle(dbPath string, verbose bool) (*Handle, error) {
	return createAndOpenDb(dbPath, verbose, false)
}

// NewMemoryDBHandle creates a new in memory database.  Useful for testing.
func NewMemoryDBHandle(verbose bool) *Handle {
	d, err := createAndOpenDb("in_memory_test", verbose, true)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// Close releases the database.
func (h *Handle) Close() error {
	return h.db.Close()
}

// IsNotFound reports whether err means the requested record doesn't exist.
func IsNotFound(err error) bool {
	return gorm.IsRecordNotFoundError(err)
}
