package domain

import (
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/utils"
)

type MedicalDeclaration struct {
	HasAllergies         bool    `json:"hasAllergies"`
	AllergiesDetails     *string `json:"allergiesDetails,omitempty"`
	HasSkinCondition     bool    `json:"hasSkinCondition"`
	SkinConditionDetails *string `json:"skinConditionDetails,omitempty"`
	IsPregnantOrNursing  bool    `json:"isPregnantOrNursing"`
	HasHeartCondition    bool    `json:"hasHeartCondition"`
	HasDiabetes          bool    `json:"hasDiabetes"`
	TakesBloodThinners   bool    `json:"takesBloodThinners"`
	TakesMedication      bool    `json:"takesMedication"`
	MedicationDetails    *string `json:"medicationDetails,omitempty"`
	OtherNotes           *string `json:"otherNotes,omitempty"`
}

type Consent struct {
	IsAdultConfirmed bool       `json:"isAdultConfirmed"`
	TermsAccepted    bool       `json:"termsAccepted"`
	PrivacyAccepted  bool       `json:"privacyAccepted"`
	FullName         *string    `json:"fullName,omitempty"`
	SignedAt         *time.Time `json:"signedAt,omitempty"`
}

type IntakeClient struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Instagram *string    `json:"instagram,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`
}

type IntakeBooking struct {
	Description         string       `json:"description"`
	BudgetRange         BudgetRange  `json:"budgetRange"`
	Placement           *string      `json:"placement,omitempty"`
	SizeDescription     *string      `json:"sizeDescription,omitempty"`
	StyleNotes          *string      `json:"styleNotes,omitempty"`
	ReferencesNotes     *string      `json:"referencesNotes,omitempty"`
	PreferredArtistName *string      `json:"preferredArtistName,omitempty"`
	StudioChooses       bool         `json:"studioChooses"`
	Source              IntakeSource `json:"source"`
	UTMCampaign         *string      `json:"utmCampaign,omitempty"`
	UTMAdset            *string      `json:"utmAdset,omitempty"`
	UTMAd               *string      `json:"utmAd,omitempty"`
	Referrer            *string      `json:"referrer,omitempty"`
	LandingPath         *string      `json:"landingPath,omitempty"`
}

// Intake is a validated public booking submission.
type Intake struct {
	Client             IntakeClient
	Booking            IntakeBooking
	MedicalDeclaration MedicalDeclaration
	Consent            Consent
}

type IntakeResult struct {
	BookingRequestID string        `json:"bookingRequestId"`
	ClientID         string        `json:"-"`
	Status           BookingStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Normalize trims free text, drops blank optionals and applies the artist
// rule: no preferred artist means the studio chooses.
func (in *Intake) Normalize() {
	c := &in.Client
	c.FirstName = utils.NormalizeString(c.FirstName)
	c.LastName = utils.NormalizeString(c.LastName)
	c.Email = utils.TrimOptional(c.Email)
	if c.Email != nil {
		e := utils.NormalizeEmail(*c.Email)
		c.Email = &e
	}
	c.Phone = utils.TrimOptional(c.Phone)
	c.Instagram = utils.TrimOptional(c.Instagram)

	b := &in.Booking
	b.Description = utils.NormalizeString(b.Description)
	b.Placement = utils.TrimOptional(b.Placement)
	b.SizeDescription = utils.TrimOptional(b.SizeDescription)
	b.StyleNotes = utils.TrimOptional(b.StyleNotes)
	b.ReferencesNotes = utils.TrimOptional(b.ReferencesNotes)
	b.PreferredArtistName = utils.TrimOptional(b.PreferredArtistName)
	if b.PreferredArtistName == nil {
		b.StudioChooses = true
	}
	b.UTMCampaign = utils.TrimOptional(b.UTMCampaign)
	b.UTMAdset = utils.TrimOptional(b.UTMAdset)
	b.UTMAd = utils.TrimOptional(b.UTMAd)
	b.Referrer = utils.TrimOptional(b.Referrer)
	b.LandingPath = utils.TrimOptional(b.LandingPath)
	if b.Source == "" {
		b.Source = SourceDirect
	}

	m := &in.MedicalDeclaration
	m.AllergiesDetails = utils.TrimOptional(m.AllergiesDetails)
	m.SkinConditionDetails = utils.TrimOptional(m.SkinConditionDetails)
	m.MedicationDetails = utils.TrimOptional(m.MedicationDetails)
	m.OtherNotes = utils.TrimOptional(m.OtherNotes)

	in.Consent.FullName = utils.TrimOptional(in.Consent.FullName)
}

type fieldLimit struct {
	name  string
	value *string
	max   int
}

// Validate checks required fields and length limits, and parses the budget
// and source enumerations in place. Call Normalize first.
func (in *Intake) Validate() error {
	c := &in.Client
	if c.FirstName == "" || c.LastName == "" {
		return Validationf("client.firstName and client.lastName are required")
	}
	if c.Email != nil && !utils.IsValidEmail(*c.Email) {
		return Validationf("client.email is not a valid email address")
	}

	b := &in.Booking
	if b.Description == "" {
		return Validationf("bookingRequest.description is required")
	}
	budget, err := ParseBudgetRange(string(b.BudgetRange))
	if err != nil {
		return err
	}
	b.BudgetRange = budget
	src, err := ParseIntakeSource(string(b.Source))
	if err != nil {
		return err
	}
	b.Source = src

	m := &in.MedicalDeclaration
	limits := []fieldLimit{
		{"client.firstName", &c.FirstName, 80},
		{"client.lastName", &c.LastName, 80},
		{"client.phone", c.Phone, 40},
		{"client.instagram", c.Instagram, 60},
		{"bookingRequest.description", &b.Description, 2000},
		{"bookingRequest.placement", b.Placement, 120},
		{"bookingRequest.sizeDescription", b.SizeDescription, 200},
		{"bookingRequest.styleNotes", b.StyleNotes, 2000},
		{"bookingRequest.referencesNotes", b.ReferencesNotes, 2000},
		{"bookingRequest.preferredArtistName", b.PreferredArtistName, 120},
		{"bookingRequest.utmCampaign", b.UTMCampaign, 120},
		{"bookingRequest.utmAdset", b.UTMAdset, 120},
		{"bookingRequest.utmAd", b.UTMAd, 120},
		{"bookingRequest.referrer", b.Referrer, 500},
		{"bookingRequest.landingPath", b.LandingPath, 300},
		{"medicalDeclaration.allergiesDetails", m.AllergiesDetails, 500},
		{"medicalDeclaration.skinConditionDetails", m.SkinConditionDetails, 500},
		{"medicalDeclaration.medicationDetails", m.MedicationDetails, 500},
		{"medicalDeclaration.otherNotes", m.OtherNotes, 1000},
		{"consent.fullName", in.Consent.FullName, 160},
	}
	for _, l := range limits {
		if l.value != nil && utils.TooLong(*l.value, l.max) {
			return Validationf("%s must be at most %d characters", l.name, l.max)
		}
	}
	return nil
}
