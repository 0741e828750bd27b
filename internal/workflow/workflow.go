// Package workflow describes the processing and taxidermy stage sequences a
// job moves through after intake.
package workflow

import (
	"errors"
	"strings"

	"github.com/tallpine/kioskdocs/internal/models"
)

var (
	ErrUnknownStage = errors.New("unknown workflow stage")
	ErrFinalStage   = errors.New("job is already at its final stage")
)

// Stage is one step of a workflow.
type Stage struct {
	ID          string
	Label       string
	Description string
	Order       int
}

var Processing = []Stage{
	{ID: string(models.StatusReceived), Label: "Received", Description: "Animal dropped off", Order: 1},
	{ID: string(models.StatusInCooler), Label: "In Cooler", Description: "Hanging in cooler", Order: 2},
	{ID: string(models.StatusHideRemoved), Label: "Hide Removed", Description: "Hide has been removed", Order: 3},
	{ID: string(models.StatusCutAndBagged), Label: "Cut & Bagged", Description: "Meat processed and bagged", Order: 4},
	{ID: string(models.StatusFreezer), Label: "In Freezer", Description: "Ready in freezer", Order: 5},
	{ID: string(models.StatusReady), Label: "Ready for Pickup", Description: "Customer can pick up", Order: 6},
	{ID: string(models.StatusPickedUp), Label: "Picked Up", Description: "Customer collected", Order: 7},
	{ID: string(models.StatusPaid), Label: "Paid", Description: "Final payment complete", Order: 8},
}

var Taxidermy = []Stage{
	{ID: "prep", Label: "Prep", Description: "Initial preparation", Order: 1},
	{ID: "mounting", Label: "Mounting", Description: "Mounting process", Order: 2},
	{ID: "painting", Label: "Painting", Description: "Detail painting", Order: 3},
	{ID: "drying", Label: "Drying", Description: "Drying period", Order: 4},
	{ID: "finishing", Label: "Finishing", Description: "Final touches", Order: 5},
	{ID: "qa", Label: "Quality Check", Description: "Final inspection", Order: 6},
}

func find(stages []Stage, id string) (Stage, bool) {
	for _, s := range stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

func next(stages []Stage, id string) (string, error) {
	cur, ok := find(stages, id)
	if !ok {
		return "", ErrUnknownStage
	}
	for _, s := range stages {
		if s.Order == cur.Order+1 {
			return s.ID, nil
		}
	}
	return "", ErrFinalStage
}

// ProcessingStage looks up the stage for a job status.
func ProcessingStage(status models.Status) (Stage, bool) {
	return find(Processing, string(status))
}

// NextProcessingStage returns the status that follows current.
func NextProcessingStage(current models.Status) (models.Status, error) {
	id, err := next(Processing, string(current))
	return models.Status(id), err
}

// NextTaxidermyStage returns the stage after current. A job that has not
// started taxidermy work begins at prep.
func NextTaxidermyStage(current *string) (string, error) {
	if current == nil || *current == "" {
		return Taxidermy[0].ID, nil
	}
	return next(Taxidermy, *current)
}

// Progress is the percentage of the job's active workflow that is complete.
// Mounted jobs with a taxidermy stage report taxidermy progress.
func Progress(job *models.Job) int {
	if job == nil {
		return 0
	}
	if job.MountRequested && job.TaxidermyStage != nil {
		if s, ok := find(Taxidermy, *job.TaxidermyStage); ok {
			return s.Order * 100 / len(Taxidermy)
		}
	}
	if s, ok := find(Processing, string(job.Status)); ok {
		return s.Order * 100 / len(Processing)
	}
	return 0
}

// FormatStatus turns a snake_case id into title words: "cut_and_bagged" -> "Cut And Bagged".
func FormatStatus(status string) string {
	words := strings.Split(status, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// RequiresDeposit reports whether work is blocked on the customer's deposit.
func RequiresDeposit(job *models.Job) bool {
	return !job.DepositPaid
}
