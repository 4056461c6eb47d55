package model

import "time"

// FileTransfer tracks the progress of one file moving over the session's
// data channel. Progress is monotonically non-decreasing until terminal.
type FileTransfer struct {
	ID          string            `json:"id"`
	FileName    string            `json:"fileName"`
	FileSize    int64             `json:"fileSize"`
	Direction   TransferDirection `json:"direction"`
	Status      TransferStatus    `json:"status"`
	Progress    int               `json:"progress"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}
