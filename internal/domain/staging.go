package domain

import "time"

// StagingFile is a transient upload parked under tmp_uploads/ while its
// contents are ingested. Exactly one request owns it, and it must be gone by
// the time that request finishes, whether committed or discarded.
type StagingFile struct {
	ID        string // unique token, also the on-disk file name stem
	Path      string // absolute path inside the staging directory
	Name      string // original upload file name, kept for archiving
	CreatedAt time.Time
}
