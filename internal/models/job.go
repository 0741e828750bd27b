package models

import "time"

// Species is the animal kind recorded at intake.
type Species string

const (
	SpeciesDeer      Species = "deer"
	SpeciesTurkey    Species = "turkey"
	SpeciesPronghorn Species = "pronghorn"
	SpeciesPheasant  Species = "pheasant"
	SpeciesDuck      Species = "duck"
	SpeciesQuail     Species = "quail"
	SpeciesDove      Species = "dove"
	SpeciesOther     Species = "other"
)

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// ProcessingType is what the customer asked us to do with the animal.
type ProcessingType string

const (
	ProcessingStandard       ProcessingType = "standard"
	ProcessingEuroMount      ProcessingType = "euro_mount"
	ProcessingShoulderMount  ProcessingType = "shoulder_mount"
	ProcessingFullMount      ProcessingType = "full_mount"
	ProcessingProcessingOnly ProcessingType = "processing_only"
)

// Customer is embedded in a Job at intake time. Only Name and Phone are
// required by the intake form; everything else may be absent.
type Customer struct {
	ID           string  `firestore:"id,omitempty" json:"id,omitempty"`
	Name         string  `firestore:"name" json:"name"`
	Phone        string  `firestore:"phone" json:"phone"`
	Email        *string `firestore:"email,omitempty" json:"email,omitempty"`
	AddressLine1 *string `firestore:"addressLine1,omitempty" json:"addressLine1,omitempty"`
	City         *string `firestore:"city,omitempty" json:"city,omitempty"`
	State        *string `firestore:"state,omitempty" json:"state,omitempty"`
	Zip          *string `firestore:"zip,omitempty" json:"zip,omitempty"`
}

// Job is the aggregate that drives compliance document generation.
// Optional attributes are pointers so that "not recorded" is distinguishable
// from a zero value.
type Job struct {
	ID        string `firestore:"-" json:"id"`
	InvoiceNo string `firestore:"invoiceNo" json:"invoiceNo"`
	// Version starts at 1 and only moves forward.
	Version int `firestore:"version" json:"version"`

	Species       Species `firestore:"species" json:"species"`
	Sex           Sex     `firestore:"sex" json:"sex"`
	AntlerPoints  *int    `firestore:"antlerPoints,omitempty" json:"antlerPoints,omitempty"`
	BeardAttached *bool   `firestore:"beardAttached,omitempty" json:"beardAttached,omitempty"`

	DateKilled *time.Time `firestore:"dateKilled,omitempty" json:"dateKilled,omitempty"`
	LicenseNo  *string    `firestore:"licenseNo,omitempty" json:"licenseNo,omitempty"`
	RanchArea  *string    `firestore:"ranchArea,omitempty" json:"ranchArea,omitempty"`
	County     *string    `firestore:"county,omitempty" json:"county,omitempty"`
	State      *string    `firestore:"state,omitempty" json:"state,omitempty"`
	Quantity   *int       `firestore:"quantity,omitempty" json:"quantity,omitempty"`

	ProcessingType ProcessingType  `firestore:"processingType" json:"processingType"`
	CutSheet       map[string]bool `firestore:"cutSheet,omitempty" json:"cutSheet,omitempty"`
	Instructions   *string         `firestore:"instructions,omitempty" json:"instructions,omitempty"`
	HangWeight     *float64        `firestore:"hangWeight,omitempty" json:"hangWeight,omitempty"`
	YieldWeight    *float64        `firestore:"yieldWeight,omitempty" json:"yieldWeight,omitempty"`
	DressedWeight  *float64        `firestore:"dressedWeight,omitempty" json:"dressedWeight,omitempty"`

	Status         Status  `firestore:"status" json:"status"`
	TaxidermyStage *string `firestore:"taxidermyStage,omitempty" json:"taxidermyStage,omitempty"`
	MountRequested bool    `firestore:"mountRequested" json:"mountRequested"`
	DepositPaid    bool    `firestore:"depositPaid" json:"depositPaid"`

	// Receiver block overrides. Nil means the business defaults apply.
	BusinessName    *string `firestore:"businessName,omitempty" json:"businessName,omitempty"`
	BusinessPhone   *string `firestore:"businessPhone,omitempty" json:"businessPhone,omitempty"`
	BusinessAddress *string `firestore:"businessAddress,omitempty" json:"businessAddress,omitempty"`

	Customer *Customer `firestore:"customer,omitempty" json:"customer,omitempty"`

	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Status is the processing workflow stage of a job.
type Status string

const (
	StatusReceived     Status = "received"
	StatusInCooler     Status = "in_cooler"
	StatusHideRemoved  Status = "hide_removed"
	StatusCutAndBagged Status = "cut_and_bagged"
	StatusFreezer      Status = "freezer"
	StatusReady        Status = "ready"
	StatusPickedUp     Status = "picked_up"
	StatusPaid         Status = "paid"
)

// AuditEntry records an operator-visible event against a job.
type AuditEntry struct {
	JobID     string         `firestore:"jobId" json:"jobId"`
	Actor     string         `firestore:"actor" json:"actor"`
	Action    string         `firestore:"action" json:"action"`
	Meta      map[string]any `firestore:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt" json:"createdAt"`
}
