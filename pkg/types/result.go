package types

// EntryType identifies what kind of catalog object an index entry describes.
type EntryType string

const (
	EntryFile   EntryType = "file"
	EntryFolder EntryType = "folder"
	EntryVolume EntryType = "volume"
)

// Result is a single search hit, fully resolved for presentation.
type Result struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Type EntryType `json:"type"`

	// Path is the display path: the entry's full path prefixed with the
	// owning volume's root path when one is known, "[label] path" when only
	// a label is known, and the bare name when no path could be resolved.
	Path string `json:"path"`

	// Size is 0 when the source carries no size for this entry.
	Size int64 `json:"size"`

	// ISO-8601 timestamps, nil when absent in the source.
	DateModified *string `json:"dateModified"`
	DateCreated  *string `json:"dateCreated"`

	VolumeLabel *string `json:"volumeLabel"`
	VolumePath  *string `json:"volumePath"`
}

// SearchResponse is the answer to one search call.
type SearchResponse struct {
	Query                  string   `json:"query"`
	Results                []Result `json:"results"`
	TotalResultsOnThisPage int      `json:"totalResultsOnThisPage"`
	ExecutionTimeMs        float64  `json:"executionTimeMs"`
}

// Statistics summarizes one index generation.
type Statistics struct {
	TotalItems     int   `json:"totalItems"`
	TotalFiles     int   `json:"totalFiles"`
	TotalFolders   int   `json:"totalFolders"`
	TotalVolumes   int   `json:"totalVolumes"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
}

// DBStatus reports the state of the source catalog and the current index.
type DBStatus struct {
	Connected     bool       `json:"connected"`
	Path          string     `json:"path"`
	FileSizeBytes int64      `json:"fileSizeBytes"`
	LastModified  *string    `json:"lastModifiedISO"`
	LastLoaded    *string    `json:"lastLoadedISO"`
	Generation    uint64     `json:"generation"`
	Statistics    Statistics `json:"statistics"`
}
