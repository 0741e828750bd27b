package models

// These structs define the JSON payloads exchanged with the kiosk over HTTP.

// IntakeRequest is the body of POST /jobs.
type IntakeRequest struct {
	Customer       Customer        `json:"customer"`
	Species        Species         `json:"species"`
	Sex            Sex             `json:"sex"`
	AntlerPoints   *int            `json:"antlerPoints,omitempty"`
	BeardAttached  *bool           `json:"beardAttached,omitempty"`
	DateKilled     string          `json:"dateKilled,omitempty"`
	LicenseNo      *string         `json:"licenseNo,omitempty"`
	RanchArea      *string         `json:"ranchArea,omitempty"`
	County         *string         `json:"county,omitempty"`
	State          *string         `json:"state,omitempty"`
	Quantity       *int            `json:"quantity,omitempty"`
	ProcessingType ProcessingType  `json:"processingType"`
	CutSheet       map[string]bool `json:"cutSheet,omitempty"`
	Instructions   *string         `json:"instructions,omitempty"`
	HangWeight     *float64        `json:"hangWeight,omitempty"`
	MountRequested bool            `json:"mountRequested"`
	DepositPaid    bool            `json:"depositPaid"`
	Actor          string          `json:"actor,omitempty"`
}

// IntakeResponse is returned after a job and its document rows are created.
type IntakeResponse struct {
	JobID     string `json:"jobId"`
	InvoiceNo string `json:"invoiceNo"`
}

// AdvanceRequest moves a job to its next workflow stage.
type AdvanceRequest struct {
	Track string `json:"track"` // "processing" or "taxidermy"
	Actor string `json:"actor,omitempty"`
}

// AdvanceResponse reports where the job landed.
type AdvanceResponse struct {
	JobID    string `json:"jobId"`
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
}

// DocumentResponse is returned for view and generate calls.
type DocumentResponse struct {
	JobID       string        `json:"jobId"`
	DocType     DocumentType  `json:"docType"`
	State       DocumentState `json:"state"`
	Version     int           `json:"version"`
	PublicURL   string        `json:"publicUrl,omitempty"`
	DataURL     string        `json:"dataUrl,omitempty"`
	Printed     bool          `json:"printed"`
	FieldMisses int           `json:"fieldMisses"`
	Misses      []string      `json:"misses,omitempty"`
}

// ErrorResponse distinguishes the three failure states the kiosk shows.
type ErrorResponse struct {
	State   DocumentState `json:"state,omitempty"`
	Message string        `json:"message"`
	Retry   bool          `json:"retry"`
}

// ArtifactVersion describes one stored rendition of a document.
type ArtifactVersion struct {
	Path      string `json:"path"`
	Version   int    `json:"version"`
	PublicURL string `json:"publicUrl"`
	Size      int64  `json:"size"`
}

// GCSEvent is the payload of a Cloud Storage object event.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        string `json:"size,omitempty"`
}
