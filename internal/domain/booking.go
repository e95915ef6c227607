package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingNew       BookingStatus = "NEW"
	BookingInReview  BookingStatus = "IN_REVIEW"
	BookingNeedsInfo BookingStatus = "NEEDS_INFO"
	BookingApproved  BookingStatus = "APPROVED"
	BookingRejected  BookingStatus = "REJECTED"
	BookingCancelled BookingStatus = "CANCELLED"
)

var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingNew:       {BookingInReview, BookingNeedsInfo, BookingApproved, BookingRejected},
	BookingInReview:  {BookingNeedsInfo, BookingApproved, BookingRejected},
	BookingNeedsInfo: {BookingInReview, BookingApproved, BookingRejected},
	BookingApproved:  {BookingCancelled},
	BookingRejected:  {},
	BookingCancelled: {},
}

// Landing on one of these stamps reviewed_at / reviewed_by_admin_id.
var reviewedStatuses = map[BookingStatus]bool{
	BookingInReview:  true,
	BookingNeedsInfo: true,
	BookingApproved:  true,
	BookingRejected:  true,
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if _, ok := allowedTransitions[st]; !ok {
		return "", Validationf("unknown booking status %q", s)
	}
	return st, nil
}

// NextAllowed returns the statuses reachable from current in one step.
func NextAllowed(current BookingStatus) []BookingStatus {
	next := allowedTransitions[current]
	out := make([]BookingStatus, len(next))
	copy(out, next)
	return out
}

func (s BookingStatus) IsReviewed() bool {
	return reviewedStatuses[s]
}

func (s BookingStatus) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// Transition is an accepted status change.
type Transition struct {
	From BookingStatus
	To   BookingStatus
	// NoOp is set when To == From; nothing about the review is re-stamped.
	NoOp bool
	// StampReview tells the caller to set reviewed_at and reviewed_by_admin_id.
	StampReview bool
}

// ApplyTransition decides whether current may move to requested. A same-status
// request is always accepted as a no-op.
func ApplyTransition(current, requested BookingStatus) (Transition, error) {
	if requested == current {
		return Transition{From: current, To: requested, NoOp: true}, nil
	}
	for _, s := range allowedTransitions[current] {
		if s == requested {
			return Transition{
				From:        current,
				To:          requested,
				StampReview: requested.IsReviewed(),
			}, nil
		}
	}
	return Transition{}, &InvalidTransitionError{Current: current, Requested: requested}
}

type BudgetRange string

const (
	BudgetUnder200   BudgetRange = "UNDER_200"
	Budget200To400   BudgetRange = "B200_400"
	Budget400To700   BudgetRange = "B400_700"
	Budget700To1000  BudgetRange = "B700_1000"
	Budget1000To1500 BudgetRange = "B1000_1500"
	Budget1500To2000 BudgetRange = "B1500_2000"
	BudgetOver2000   BudgetRange = "OVER_2000"
)

// ParseBudgetRange accepts both the stored names and the public form
// ("_200_400") the intake form posts.
func ParseBudgetRange(s string) (BudgetRange, error) {
	switch s {
	case "UNDER_200":
		return BudgetUnder200, nil
	case "_200_400", "B200_400":
		return Budget200To400, nil
	case "_400_700", "B400_700":
		return Budget400To700, nil
	case "_700_1000", "B700_1000":
		return Budget700To1000, nil
	case "_1000_1500", "B1000_1500":
		return Budget1000To1500, nil
	case "_1500_2000", "B1500_2000":
		return Budget1500To2000, nil
	case "OVER_2000":
		return BudgetOver2000, nil
	default:
		return "", Validationf("unsupported budgetRange %q", s)
	}
}

type IntakeSource string

const (
	SourceDirect    IntakeSource = "DIRECT"
	SourceInstagram IntakeSource = "INSTAGRAM"
	SourceFacebook  IntakeSource = "FACEBOOK"
	SourceGoogle    IntakeSource = "GOOGLE"
	SourceTikTok    IntakeSource = "TIKTOK"
	SourceOther     IntakeSource = "OTHER"
)

func ParseIntakeSource(s string) (IntakeSource, error) {
	switch src := IntakeSource(s); src {
	case SourceDirect, SourceInstagram, SourceFacebook, SourceGoogle, SourceTikTok, SourceOther:
		return src, nil
	default:
		return "", Validationf("unknown intake source %q", s)
	}
}

type BookingRequest struct {
	ID                  string        `json:"id"`
	ClientID            string        `json:"clientId"`
	Status              BookingStatus `json:"status"`
	Description         string        `json:"description"`
	BudgetRange         BudgetRange   `json:"budgetRange"`
	Placement           *string       `json:"placement,omitempty"`
	SizeDescription     *string       `json:"sizeDescription,omitempty"`
	StyleNotes          *string       `json:"styleNotes,omitempty"`
	ReferencesNotes     *string       `json:"referencesNotes,omitempty"`
	PreferredArtistName *string       `json:"preferredArtistName,omitempty"`
	StudioChooses       bool          `json:"studioChooses"`
	Source              IntakeSource  `json:"source"`
	UTMCampaign         *string       `json:"utmCampaign,omitempty"`
	UTMAdset            *string       `json:"utmAdset,omitempty"`
	UTMAd               *string       `json:"utmAd,omitempty"`
	Referrer            *string       `json:"referrer,omitempty"`
	LandingPath         *string       `json:"landingPath,omitempty"`
	AdminNotes          *string       `json:"adminNotes,omitempty"`
	InternalStatusNote  *string       `json:"internalStatusNote,omitempty"`
	ReviewedAt          *time.Time    `json:"reviewedAt,omitempty"`
	ReviewedByAdminID   *string       `json:"reviewedByAdminId,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

type Client struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     *string    `json:"email,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Instagram *string    `json:"instagram,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// BookingListItem is a booking row joined with its client.
type BookingListItem struct {
	BookingRequest
	Client Client `json:"client"`
}

type BookingFilter struct {
	Status *BookingStatus
	Query  string
	Page   int
	Limit  int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps paging to page >= 1 and 1 <= limit <= MaxPageLimit.
func (f *BookingFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

func (f BookingFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type BookingPage struct {
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Items []BookingListItem `json:"items"`
}

type ReviewerSummary struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName,omitempty"`
}

type BookingDetail struct {
	BookingRequest
	Client             Client              `json:"client"`
	MedicalDeclaration *MedicalDeclaration `json:"medicalDeclaration,omitempty"`
	Consent            *Consent            `json:"consent,omitempty"`
	Uploads            []Upload            `json:"uploads"`
	ReviewedByAdmin    *ReviewerSummary    `json:"reviewedByAdmin,omitempty"`
}

type StatusUpdate struct {
	Status             BookingStatus
	AdminNotes         *string
	InternalStatusNote *string
}

// StatusWrite is the compare-and-swap write issued after a transition is
// accepted. The row is only changed while its status still equals Expected.
type StatusWrite struct {
	ID                 string
	Expected           BookingStatus
	Next               BookingStatus
	AdminNotes         *string
	InternalStatusNote *string
	ReviewedAt         *time.Time
	ReviewedByAdminID  *string
}

func (s BookingStatus) String() string {
	return string(s)
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

// PublicBookingView is what a link bearer with VIEW scope sees. Admin notes,
// review details and the medical declaration are left out.
type PublicBookingView struct {
	ID                  string        `json:"id"`
	Status              BookingStatus `json:"status"`
	Description         string        `json:"description"`
	BudgetRange         BudgetRange   `json:"budgetRange"`
	Placement           *string       `json:"placement,omitempty"`
	SizeDescription     *string       `json:"sizeDescription,omitempty"`
	StyleNotes          *string       `json:"styleNotes,omitempty"`
	PreferredArtistName *string       `json:"preferredArtistName,omitempty"`
	StudioChooses       bool          `json:"studioChooses"`
	ClientFirstName     string        `json:"clientFirstName"`
	Uploads             []Upload      `json:"uploads"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

func NewPublicBookingView(d *BookingDetail) *PublicBookingView {
	uploads := d.Uploads
	if uploads == nil {
		uploads = []Upload{}
	}
	return &PublicBookingView{
		ID:                  d.ID,
		Status:              d.Status,
		Description:         d.Description,
		BudgetRange:         d.BudgetRange,
		Placement:           d.Placement,
		SizeDescription:     d.SizeDescription,
		StyleNotes:          d.StyleNotes,
		PreferredArtistName: d.PreferredArtistName,
		StudioChooses:       d.StudioChooses,
		ClientFirstName:     d.Client.FirstName,
		Uploads:             uploads,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}
