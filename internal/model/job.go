package model

type JobRequest struct {
	Operation string   `json:"operation"`
	IDs       []string `json:"ids"`
	Reason    string   `json:"reason,omitempty"`
}

type JobData struct {
	JobID          string      `json:"job_id"`
	Operation      string      `json:"operation"`
	Status         string      `json:"status"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	SuccessItems   int         `json:"success_items"`
	FailedItems    int         `json:"failed_items"`
	Progress       int         `json:"progress"`
	CreatedAt      string      `json:"created_at"`
	StartedAt      string      `json:"started_at,omitempty"`
	FinishedAt     string      `json:"finished_at,omitempty"`
	RequestedBy    string      `json:"requested_by,omitempty"`
	Result         *BulkResult `json:"result,omitempty"`
}
