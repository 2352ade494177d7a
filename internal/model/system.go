package model

// VersionInfo contains version and feature information for the application.
type VersionInfo struct {
	AppVersion    string          `json:"app_version"`
	SchemaVersion int64           `json:"schema_version"`
	Features      map[string]bool `json:"features"`
}
