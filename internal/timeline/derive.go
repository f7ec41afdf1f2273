package timeline

import (
	"sort"
	"time"

	"dealdesk-backend/internal/domain"
)

// Milestone labels. The legacy fixed-offset schedule always produces these;
// dynamic schedules may carry any label.
const (
	LabelEscrowOpen      = "Escrow Open"
	LabelFeasibilityEnds = "Feasibility Ends"
	LabelDDExtension     = "DD Extension"
	LabelInsideClose     = "Inside Close"
	LabelOutsideClose    = "Outside Close"
)

// Schedule kinds.
const (
	ScheduleDynamic = "dynamic"
	ScheduleLegacy  = "legacy"
)

// Milestone is one labeled calendar date in a deal's normalized schedule.
type Milestone struct {
	Label string    `json:"label"`
	Date  time.Time `json:"date"`
}

// Schedule is a deal's milestone list normalized to a single shape, so the
// deriver never branches on where the dates came from. Skipped counts
// dynamic rows dropped for having no resolvable date; callers surface it for
// operator visibility.
type Schedule struct {
	Kind       string      `json:"kind"`
	Milestones []Milestone `json:"milestones"`
	Skipped    int         `json:"skipped"`
}

// CriticalDate is a derived milestone decorated for display. Computed fresh
// on every read, never persisted.
type CriticalDate struct {
	Label    string    `json:"label"`
	Date     time.Time `json:"date"`
	IsPast   bool      `json:"is_past"`
	DaysAway int       `json:"days_away"`
	Urgency  string    `json:"urgency"`
}

// ScheduleOf resolves a deal into a normalized schedule. Dynamic deal dates
// always win when any row is present; the legacy fixed-offset fields are a
// fallback for records created before per-deal schedules existed. An
// escrow-open date, when set, leads the list under either kind.
func ScheduleOf(deal *domain.Deal) Schedule {
	if len(deal.DealDates) > 0 {
		return dynamicSchedule(deal)
	}
	return legacySchedule(deal)
}

func dynamicSchedule(deal *domain.Deal) Schedule {
	s := Schedule{Kind: ScheduleDynamic}
	if deal.EscrowOpenDate != nil {
		s.Milestones = append(s.Milestones, Milestone{Label: LabelEscrowOpen, Date: Truncate(*deal.EscrowOpenDate)})
	}

	rows := make([]domain.DealDate, len(deal.DealDates))
	copy(rows, deal.DealDates)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SortOrder != rows[j].SortOrder {
			return rows[i].SortOrder < rows[j].SortOrder
		}
		// sort_order is expected unique; date settles malformed data.
		di, dj := rows[i].Date, rows[j].Date
		if di == nil || dj == nil {
			return dj == nil && di != nil
		}
		return di.Before(*dj)
	})

	for _, row := range rows {
		if row.Date == nil {
			s.Skipped++
			continue
		}
		s.Milestones = append(s.Milestones, Milestone{Label: row.Label, Date: Truncate(*row.Date)})
	}
	return s
}

func legacySchedule(deal *domain.Deal) Schedule {
	s := Schedule{Kind: ScheduleLegacy}
	if deal.EscrowOpenDate != nil {
		s.Milestones = append(s.Milestones, Milestone{Label: LabelEscrowOpen, Date: Truncate(*deal.EscrowOpenDate)})
	}

	var feasibilityEnd *time.Time
	if deal.EscrowOpenDate != nil && deal.FeasibilityDays != nil {
		end := Truncate(*deal.EscrowOpenDate).AddDate(0, 0, *deal.FeasibilityDays)
		feasibilityEnd = &end
		s.Milestones = append(s.Milestones, Milestone{Label: LabelFeasibilityEnds, Date: end})
	}
	if deal.DDExtensionDate != nil {
		s.Milestones = append(s.Milestones, Milestone{Label: LabelDDExtension, Date: Truncate(*deal.DDExtensionDate)})
	}
	if feasibilityEnd != nil && deal.InsideCloseDays != nil {
		inside := feasibilityEnd.AddDate(0, 0, *deal.InsideCloseDays)
		s.Milestones = append(s.Milestones, Milestone{Label: LabelInsideClose, Date: inside})
		if deal.OutsideCloseDays != nil {
			s.Milestones = append(s.Milestones, Milestone{Label: LabelOutsideClose, Date: inside.AddDate(0, 0, *deal.OutsideCloseDays)})
		}
	}
	return s
}

// Derive produces the ordered display timeline for a deal as of today,
// plus the count of malformed rows skipped. An empty result means "no
// forecast available", not an error.
func Derive(deal *domain.Deal, today time.Time) ([]CriticalDate, int) {
	s := ScheduleOf(deal)
	out := make([]CriticalDate, 0, len(s.Milestones))
	for _, m := range s.Milestones {
		daysAway := DaysBetween(today, m.Date)
		out = append(out, CriticalDate{
			Label:    m.Label,
			Date:     m.Date,
			IsPast:   daysAway < 0,
			DaysAway: daysAway,
			Urgency:  UrgencyFor(daysAway),
		})
	}
	return out, s.Skipped
}

// Next returns the deal's earliest upcoming critical date. When every
// milestone has passed it returns the most recently passed one; a deal with
// no milestones at all returns nil.
func Next(deal *domain.Deal, today time.Time) *CriticalDate {
	dates, _ := Derive(deal, today)
	if len(dates) == 0 {
		return nil
	}

	var upcoming, lastPast *CriticalDate
	for i := range dates {
		cd := &dates[i]
		if cd.IsPast {
			if lastPast == nil || cd.Date.After(lastPast.Date) {
				lastPast = cd
			}
			continue
		}
		if upcoming == nil || cd.Date.Before(upcoming.Date) {
			upcoming = cd
		}
	}
	if upcoming != nil {
		return upcoming
	}
	return lastPast
}
