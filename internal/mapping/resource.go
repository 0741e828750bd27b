package mapping

import (
	"sort"
	"strings"

	"github.com/tallpine/kioskdocs/internal/models"
)

// CutFieldPrefix prefixes cut-sheet checkbox names on the WRD form.
const CutFieldPrefix = "cut_"

// ResourceNamed maps a job onto the WRD AcroForm.
func (m *Mapper) ResourceNamed(job *models.Job) NamedFields {
	f := newNamedFields()
	biz := receiver(job, m.Business)

	f.Text["donor_name"] = customerName(job)
	f.Text["donor_phone"] = customerPhone(job)
	f.Text["donor_address"] = customerAddress(job)
	f.Text["donor_city"] = customerCity(job)
	f.Text["donor_state"] = customerState(job)
	f.Text["donor_zip"] = customerZip(job)

	f.Text["receiver_name"] = biz.Name
	f.Text["receiver_address"] = biz.Address

	f.Text["species"] = speciesLabel(job)
	f.Text["quantity"] = quantity(job)
	f.Text["license_number"] = licenseNo(job)
	f.Text["kill_date"] = killDate(job)
	f.Text["processing_type"] = processingLabel(job)
	f.Text["instructions"] = instructions(job)
	f.Text["date"] = m.today()

	if w, ok := weight(hangWeight(job)); ok {
		f.Text["hang_weight"] = w
	}
	if w, ok := weight(yieldWeight(job)); ok {
		f.Text["yield_weight"] = w
	}

	if job != nil {
		for cut, selected := range job.CutSheet {
			name := cutFieldName(cut)
			if name == CutFieldPrefix {
				continue
			}
			f.Bool[name] = selected
		}
	}
	return f
}

// ResourceCoordinates is the hand-calibrated layout for the flat WRD template.
func (m *Mapper) ResourceCoordinates(job *models.Job) []Draw {
	const size = 12
	biz := receiver(job, m.Business)

	var l drawList
	l.add("donor_name", customerName(job), 120, 710, size)
	l.add("donor_phone", customerPhone(job), 420, 710, size)
	l.add("donor_address", customerAddress(job), 120, 690, size)
	l.add("donor_city_state_zip", cityStateZip(job), 120, 670, size)

	l.add("business_name", biz.Name, 120, 630, size)
	l.add("business_address", biz.Address, 120, 612, size)

	l.add("species", speciesLabel(job), 120, 570, size)
	l.add("quantity", quantity(job), 420, 570, size)
	l.add("license", licenseNo(job), 120, 550, size)
	l.add("date", killDate(job), 420, 550, size)

	l.add("processing_type", processingLabel(job), 120, 510, size)
	l.add("instructions", instructions(job), 120, 490, size)
	if cuts := selectedCuts(job); len(cuts) > 0 {
		l.add("cuts", "Cuts: "+strings.Join(cuts, ", "), 120, 450, 10)
	}

	if w, ok := weight(hangWeight(job)); ok {
		l.add("hang_weight", "Hang: "+w+" lb", 120, 470, size)
	}
	if w, ok := weight(yieldWeight(job)); ok {
		l.add("yield_weight", "Yield: "+w+" lb", 260, 470, size)
	}
	return l
}

// selectedCuts lists the cut names chosen on the cut sheet, sorted.
func selectedCuts(job *models.Job) []string {
	if job == nil {
		return nil
	}
	var cuts []string
	for cut, selected := range job.CutSheet {
		if selected {
			cuts = append(cuts, cut)
		}
	}
	sort.Strings(cuts)
	return cuts
}

func cutFieldName(cut string) string {
	name := strings.ToLower(strings.TrimSpace(cut))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return CutFieldPrefix + name
}

func hangWeight(job *models.Job) *float64 {
	if job == nil {
		return nil
	}
	return job.HangWeight
}

func yieldWeight(job *models.Job) *float64 {
	if job == nil {
		return nil
	}
	return job.YieldWeight
}
