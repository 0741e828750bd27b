package mapping

import "github.com/tallpine/kioskdocs/internal/models"

// Template field names on the PWD-535 form.
const (
	FieldHunterName    = "hunter_name"
	FieldKillDate      = "kill_date"
	FieldInvoiceNumber = "invoice_number"
	FieldToday         = "Date"
	FieldAntlerPoints  = "deer_antlered_points"

	// GroupSpeciesSex is the single radio group holding every species/sex answer.
	GroupSpeciesSex = "Group4"
	// GroupBeard sits next to Group4 on the paper form but is a separate question.
	GroupBeard = "Group5"

	BeardYes = "turkey_beard_attached_yes"
	BeardNo  = "turkey_beard_attached_no"
)

// speciesSexOptions maps species to the (male, female) option values of Group4.
var speciesSexOptions = map[models.Species][2]string{
	models.SpeciesDeer:      {"antlered", "antlerless"},
	models.SpeciesTurkey:    {"turkey_gobbler", "turkey_hen"},
	models.SpeciesPronghorn: {"pronghorn_buck", "pronghorn_doe"},
	models.SpeciesPheasant:  {"pheasant_cock", "pheasant_hen"},
}

// speciesSexChoice returns the Group4 option for the job, or "" when the
// species is not on the form. Any sex other than male selects the female option.
func speciesSexChoice(job *models.Job) string {
	opts, ok := speciesSexOptions[species(job)]
	if !ok {
		return ""
	}
	if isMale(job) {
		return opts[0]
	}
	return opts[1]
}

// ProofOfSexNamed maps a job onto the PWD-535 AcroForm.
func (m *Mapper) ProofOfSexNamed(job *models.Job) NamedFields {
	f := newNamedFields()
	f.Text[FieldHunterName] = customerName(job)
	f.Text[FieldKillDate] = killDate(job)
	f.Text[FieldInvoiceNumber] = invoiceNo(job)
	f.Text[FieldToday] = m.today()

	if choice := speciesSexChoice(job); choice != "" {
		f.Choice[GroupSpeciesSex] = choice
	}
	if points := antlerPoints(job); points != "" {
		f.Text[FieldAntlerPoints] = points
	}
	if attached, applies := beardAttached(job); applies {
		f.Choice[GroupBeard] = BeardNo
		if attached {
			f.Choice[GroupBeard] = BeardYes
		}
	}
	return f
}

// ProofOfSexCoordinates is the hand-calibrated layout for the flat PWD-535 scan.
func (m *Mapper) ProofOfSexCoordinates(job *models.Job) []Draw {
	const size = 11
	biz := receiver(job, m.Business)

	var l drawList
	// Hunter block
	l.add("name", customerName(job), 120, 708, size)
	l.add("phone", customerPhone(job), 420, 708, size)
	l.add("email", customerEmail(job), 120, 690, size)
	l.add("address", customerAddress(job), 120, 672, size)
	l.add("city_state_zip", cityStateZip(job), 120, 654, size)

	// Animal block
	l.add("species", speciesLabel(job), 120, 628, size)
	l.add("sex", sexLabel(job), 260, 628, size)
	l.add("antler_points", antlerPoints(job), 420, 628, size)
	l.add("date_killed", killDate(job), 120, 602, size)
	l.add("license", licenseNo(job), 260, 602, size)
	l.add("county", county(job), 120, 584, size)
	l.add("state", harvestState(job), 260, 584, size)

	if attached, applies := beardAttached(job); applies {
		if attached {
			l.add("beard_yes", "X", 360, 600, 14)
		} else {
			l.add("beard_no", "X", 420, 600, 14)
		}
	}

	if inv := invoiceNo(job); inv != "" {
		l.add("invoice", "Invoice: "+inv, 420, 670, 10)
	}

	// Receiving business
	l.add("business_name", biz.Name, 120, 160, size)
	l.add("business_phone", biz.Phone, 420, 160, size)
	l.add("business_address", biz.Address, 120, 142, size)
	l.add("date_signed", m.today(), 420, 124, size)
	return l
}
