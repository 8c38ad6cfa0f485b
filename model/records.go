package model

// SharedRecord is the sender-side record of one uploaded-and-shared file.
// Created at successful upload completion, never mutated, deleted by the
// retention sweeper once expired.
type SharedRecord struct {
	ID         string `json:"id"`
	UploadedAt string `json:"uploaded_at"` // wire format "2006-01-02 15:04" in the fixed zone
	Recipient  string `json:"recipient"`
	FolderID   string `json:"folder_id"` // the date folder holding the file
	FileName   string `json:"file_name"`
	FileID     string `json:"file_id"` // remote id of the uploaded object
}

// ReceivedRecord is the recipient-side cache of a folder opened via a shared
// link. FolderID is unique per record; LastAccessAt is touched on every
// reopen.
type ReceivedRecord struct {
	ID           string `json:"id"`
	FolderID     string `json:"folder_id"`
	FolderName   string `json:"folder_name"`
	Sender       string `json:"sender"`
	UploadedAt   string `json:"uploaded_at"`    // when the content was uploaded (retention basis)
	ReceivedAt   string `json:"received_at"`    // when the link was first opened
	LastAccessAt string `json:"last_access_at"` // when the folder was last reopened
}
