package mapping

import (
	"strconv"
	"strings"
	"time"

	"github.com/tallpine/kioskdocs/internal/models"
)

// Every optional value read by the tables goes through one of these. None of
// them may return "undefined", "null" or "<nil>" for missing input.

const dateLayout = "01/02/2006"

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func strOr(p *string, fallback string) string {
	if s := str(p); s != "" {
		return s
	}
	return fallback
}

func customer(job *models.Job) models.Customer {
	if job == nil || job.Customer == nil {
		return models.Customer{}
	}
	return *job.Customer
}

func customerName(job *models.Job) string { return strings.TrimSpace(customer(job).Name) }
func customerPhone(job *models.Job) string { return strings.TrimSpace(customer(job).Phone) }
func customerEmail(job *models.Job) string { return str(customer(job).Email) }
func customerAddress(job *models.Job) string {
	return str(customer(job).AddressLine1)
}
func customerCity(job *models.Job) string { return str(customer(job).City) }
func customerState(job *models.Job) string { return str(customer(job).State) }
func customerZip(job *models.Job) string { return str(customer(job).Zip) }

// cityStateZip joins whatever parts are present as "City, ST 12345".
func cityStateZip(job *models.Job) string {
	city, state, zip := customerCity(job), customerState(job), customerZip(job)
	tail := strings.TrimSpace(state + " " + zip)
	switch {
	case city == "":
		return tail
	case tail == "":
		return city
	}
	return city + ", " + tail
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func killDate(job *models.Job) string {
	if job == nil {
		return ""
	}
	return formatDate(job.DateKilled)
}

func intString(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// weight reports a printable weight and whether it should be printed at all.
func weight(p *float64) (string, bool) {
	if p == nil || *p <= 0 {
		return "", false
	}
	return strconv.FormatFloat(*p, 'f', -1, 64), true
}

func quantity(job *models.Job) string {
	if job == nil || job.Quantity == nil || *job.Quantity < 1 {
		return "1"
	}
	return strconv.Itoa(*job.Quantity)
}

func licenseNo(job *models.Job) string {
	if job == nil {
		return ""
	}
	return str(job.LicenseNo)
}

func invoiceNo(job *models.Job) string {
	if job == nil {
		return ""
	}
	return strings.TrimSpace(job.InvoiceNo)
}

func county(job *models.Job) string {
	if job == nil {
		return ""
	}
	return strOr(job.County, str(job.RanchArea))
}

func harvestState(job *models.Job) string {
	if job == nil {
		return "TX"
	}
	return strOr(job.State, "TX")
}

func instructions(job *models.Job) string {
	if job == nil {
		return ""
	}
	return str(job.Instructions)
}

func species(job *models.Job) models.Species {
	if job == nil {
		return ""
	}
	return models.Species(strings.ToLower(strings.TrimSpace(string(job.Species))))
}

func sex(job *models.Job) models.Sex {
	if job == nil {
		return ""
	}
	return models.Sex(strings.ToLower(strings.TrimSpace(string(job.Sex))))
}

func isMale(job *models.Job) bool { return sex(job) == models.SexMale }

func speciesLabel(job *models.Job) string {
	s := string(species(job))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sexLabel(job *models.Job) string {
	switch sex(job) {
	case models.SexMale:
		return "Male"
	case models.SexFemale:
		return "Female"
	case models.SexUnknown:
		return "Unknown"
	}
	return ""
}

var processingLabels = map[models.ProcessingType]string{
	models.ProcessingStandard:       "Standard Processing",
	models.ProcessingEuroMount:      "European Mount",
	models.ProcessingShoulderMount:  "Shoulder Mount",
	models.ProcessingFullMount:      "Full Mount",
	models.ProcessingProcessingOnly: "Processing Only",
}

func processingLabel(job *models.Job) string {
	if job == nil || job.ProcessingType == "" {
		return "Basic"
	}
	if label, ok := processingLabels[job.ProcessingType]; ok {
		return label
	}
	return string(job.ProcessingType)
}

// antlerPoints is only meaningful for antlered deer.
func antlerPoints(job *models.Job) string {
	if species(job) != models.SpeciesDeer || !isMale(job) {
		return ""
	}
	return intString(job.AntlerPoints)
}

// beardAttached reports the beard answer and whether the question applies.
func beardAttached(job *models.Job) (bool, bool) {
	if species(job) != models.SpeciesTurkey || !isMale(job) {
		return false, false
	}
	return job.BeardAttached != nil && *job.BeardAttached, true
}

// receiver resolves the receiving business block, preferring job overrides.
func receiver(job *models.Job, b Business) Business {
	if job == nil {
		return b
	}
	return Business{
		Name:    strOr(job.BusinessName, b.Name),
		Phone:   strOr(job.BusinessPhone, b.Phone),
		Address: strOr(job.BusinessAddress, b.Address),
	}
}
