package mapping

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/tallpine/kioskdocs/internal/models"
)

// legalFields is the subset of a job that appears on a compliance document.
// Workflow status, payment state and timestamps are deliberately absent.
type legalFields struct {
	InvoiceNo       string          `json:"invoiceNo"`
	Customer        models.Customer `json:"customer"`
	Species         string          `json:"species"`
	Sex             string          `json:"sex"`
	AntlerPoints    string          `json:"antlerPoints"`
	Beard           string          `json:"beard"`
	DateKilled      string          `json:"dateKilled"`
	LicenseNo       string          `json:"licenseNo"`
	County          string          `json:"county"`
	State           string          `json:"state"`
	Quantity        string          `json:"quantity"`
	ProcessingType  string          `json:"processingType"`
	CutSheet        map[string]bool `json:"cutSheet"`
	Instructions    string          `json:"instructions"`
	HangWeight      string          `json:"hangWeight"`
	YieldWeight     string          `json:"yieldWeight"`
	BusinessName    string          `json:"businessName"`
	BusinessPhone   string          `json:"businessPhone"`
	BusinessAddress string          `json:"businessAddress"`
}

// Fingerprint hashes the legally relevant content of a job. Two jobs with
// the same fingerprint produce the same documents apart from today's date.
func Fingerprint(job *models.Job) string {
	if job == nil {
		return ""
	}
	beard := ""
	if attached, applies := beardAttached(job); applies {
		beard = BeardNo
		if attached {
			beard = BeardYes
		}
	}
	hang, _ := weight(job.HangWeight)
	yield, _ := weight(job.YieldWeight)
	lf := legalFields{
		InvoiceNo:       invoiceNo(job),
		Customer:        customer(job),
		Species:         string(species(job)),
		Sex:             string(sex(job)),
		AntlerPoints:    antlerPoints(job),
		Beard:           beard,
		DateKilled:      killDate(job),
		LicenseNo:       licenseNo(job),
		County:          county(job),
		State:           harvestState(job),
		Quantity:        quantity(job),
		ProcessingType:  string(job.ProcessingType),
		CutSheet:        job.CutSheet,
		Instructions:    instructions(job),
		HangWeight:      hang,
		YieldWeight:     yield,
		BusinessName:    str(job.BusinessName),
		BusinessPhone:   str(job.BusinessPhone),
		BusinessAddress: str(job.BusinessAddress),
	}
	// encoding/json sorts map keys, so the output is stable.
	b, err := json.Marshal(lf)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
