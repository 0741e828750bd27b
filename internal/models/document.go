package models

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies one of the two regulatory documents produced per job.
type DocumentType string

const (
	// DocProofOfSex is the proof-of-sex receipt (PWD-535).
	DocProofOfSex DocumentType = "PWD-535"
	// DocResource is the wildlife resource document.
	DocResource DocumentType = "WRD"
)

// DocumentTypes lists every type created at intake, in display order.
var DocumentTypes = []DocumentType{DocProofOfSex, DocResource}

// Label is the object-name prefix used for stored artifacts.
func (t DocumentType) Label() string {
	switch t {
	case DocProofOfSex:
		return "pwd535"
	case DocResource:
		return "wrd"
	}
	return strings.ToLower(string(t))
}

// Title is the human readable name shown to operators.
func (t DocumentType) Title() string {
	switch t {
	case DocProofOfSex:
		return "Proof of Sex Receipt"
	case DocResource:
		return "Wildlife Resource Document"
	}
	return string(t)
}

// ParseDocumentType accepts the canonical type or its label, case-insensitively.
func ParseDocumentType(s string) (DocumentType, error) {
	for _, t := range DocumentTypes {
		if strings.EqualFold(s, string(t)) || strings.EqualFold(s, t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// DocumentState is the user-visible lifecycle state of a compliance document.
type DocumentState string

const (
	StatePending         DocumentState = "pending"
	StateReady           DocumentState = "ready"
	StateFailed          DocumentState = "failed"
	StateTemplateMissing DocumentState = "template_missing"
)

// ComplianceDocument is the single record per (job, type) pair. It is created
// at intake with a nil PDFURL and afterwards only ever updated in place.
type ComplianceDocument struct {
	ID           string       `firestore:"-" json:"id"`
	JobID        string       `firestore:"jobId" json:"jobId"`
	Type         DocumentType `firestore:"docType" json:"docType"`
	PDFURL       *string      `firestore:"pdfUrl" json:"pdfUrl"`
	Version      int          `firestore:"version" json:"version"`
	RenderedHash string       `firestore:"renderedHash,omitempty" json:"renderedHash,omitempty"`
	Printed      bool         `firestore:"printed" json:"printed"`
	CreatedAt    time.Time    `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `firestore:"updatedAt" json:"updatedAt"`
}

// State derives the lifecycle state from the persisted record alone.
func (d *ComplianceDocument) State() DocumentState {
	if d == nil || d.PDFURL == nil || *d.PDFURL == "" {
		return StatePending
	}
	return StateReady
}

// ComplianceDocumentID is the deterministic record ID for a (job, type) pair.
func ComplianceDocumentID(jobID string, t DocumentType) string {
	return jobID + "_" + t.Label()
}
