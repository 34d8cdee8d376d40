package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Viewer version
const (
	VersionMajor = 1
	VersionMinor = 3
	VersionPatch = 0
)

var CurrentVersion = Version{
	Major: VersionMajor,
	Minor: VersionMinor,
	Patch: VersionPatch,
}

// Version represents a semantic version
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String returns the version as a string (e.g., "1.3.0")
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "1.2.3" or "v1.2.3"
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version format: %s", s)
	}

	nums := make([]int, 3)
	for i, name := range []string{"major", "minor", "patch"} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid %s version: %s", name, parts[i])
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// IsNewerThan returns true if this version is newer than other
func (v Version) IsNewerThan(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch > other.Patch
}

// VersionInfo is what /api/version reports
type VersionInfo struct {
	Version  string `json:"version"`
	Software string `json:"software"`
	Backend  string `json:"backend"`
	Database string `json:"database,omitempty"` // version that last wrote the viewer database
}

// GetVersionInfo returns the current version info
func GetVersionInfo(backend string) VersionInfo {
	return VersionInfo{
		Version:  CurrentVersion.String(),
		Software: "botmap",
		Backend:  backend,
	}
}

const dbVersionKey = "viewer_version"

// CheckDatabaseVersion returns the version that last wrote the database and
// whether it is newer than this build. The running version is recorded
// unless that would hide a downgrade.
func CheckDatabaseVersion(storage *Storage) (Version, bool, error) {
	raw, err := storage.GetMeta(dbVersionKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Version{}, false, err
	}

	var previous Version
	if raw != "" {
		// An unreadable mark is overwritten.
		if v, perr := ParseVersion(raw); perr == nil {
			previous = v
		}
	}
	if previous.IsNewerThan(CurrentVersion) {
		return previous, true, nil
	}
	return previous, false, storage.SetMeta(dbVersionKey, CurrentVersion.String())
}
