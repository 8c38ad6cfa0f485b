package model

// FileInfo describes one child of a remote folder.
type FileInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	IsFolder bool   `json:"is_folder"`
	Size     int64  `json:"size,omitempty"`
}

// FolderStructure is the live listing of a remote folder. It is produced on
// demand from the gateway and never persisted.
type FolderStructure struct {
	FolderName string     `json:"folder_name"` // date folder name, e.g. "2025-06-25"
	Sender     string     `json:"sender"`      // derived from the parent folder name
	UploadedAt string     `json:"uploaded_at"` // folder creation time in the fixed zone
	Files      []FileInfo `json:"files"`
}
