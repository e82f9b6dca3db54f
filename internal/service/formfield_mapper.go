package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// ScheduleMaxLines is the number of dividend line groups the official
// schedule template holds. When the input exceeds it, only the first
// ScheduleMaxLines dividends are placed on lines, but the declared totals
// always cover the full list and an overflow note flags that additional
// forms are required. This limit mirrors the paper form; changing it changes
// what a user submits to the tax authority.
const ScheduleMaxLines = 10

// The field-name vocabulary below is a versioned contract with the PDF
// templates. Renaming a field here without updating the template breaks
// silently: the renderer logs and skips names the template doesn't know.

// MapResidencyCertificate projects a user profile onto the residency
// certificate's field map. The map always contains every expected field
// name; missing optional profile data maps to an empty string, never an
// omitted key.
func MapResidencyCertificate(profile model.UserProfile, taxYear int, now time.Time) map[string]string {
	return map[string]string{
		"fullName":   profile.FullName(),
		"firstName":  profile.FirstName,
		"lastName":   profile.LastName,
		"street":     profile.Street,
		"postalCode": profile.PostalCode,
		"city":       profile.City,
		"canton":     profile.Canton,
		"country":    profile.CountryOfResidence,
		"taxId":      profile.TaxID,
		"taxYear":    strconv.Itoa(taxYear),
		"issueDate":  now.Format("02.01.2006"),
	}
}

// MapDividendSchedule projects a dividend list onto the schedule's field
// map. At most ScheduleMaxLines dividends are placed on lines, in the order
// given; the total fields cover the full input list regardless.
func MapDividendSchedule(profile model.UserProfile, dividends []model.Dividend, taxYear int) map[string]string {
	fields := map[string]string{
		"fullName": profile.FullName(),
		"taxId":    profile.TaxID,
		"country":  profile.CountryOfResidence,
		"taxYear":  strconv.Itoa(taxYear),
	}

	totalGross := decimal.Zero
	totalWithheld := decimal.Zero
	totalReclaimable := decimal.Zero
	for _, d := range dividends {
		totalGross = totalGross.Add(d.GrossAmount)
		totalWithheld = totalWithheld.Add(d.WithholdingTax)
		if d.ReclaimableAmount != nil {
			totalReclaimable = totalReclaimable.Add(*d.ReclaimableAmount)
		}
	}

	for i := 0; i < ScheduleMaxLines; i++ {
		prefix := "div" + strconv.Itoa(i+1) + "_"
		if i < len(dividends) {
			d := dividends[i]
			reclaimable := decimal.Zero
			if d.ReclaimableAmount != nil {
				reclaimable = *d.ReclaimableAmount
			}
			fields[prefix+"security"] = d.SecurityName
			fields[prefix+"isin"] = d.Isin
			fields[prefix+"date"] = d.PaymentDate.Format("02.01.2006")
			fields[prefix+"country"] = d.SourceCountry
			fields[prefix+"gross"] = d.GrossAmount.StringFixed(2)
			fields[prefix+"withheld"] = d.WithholdingTax.StringFixed(2)
			fields[prefix+"reclaimable"] = reclaimable.StringFixed(2)
		} else {
			fields[prefix+"security"] = ""
			fields[prefix+"isin"] = ""
			fields[prefix+"date"] = ""
			fields[prefix+"country"] = ""
			fields[prefix+"gross"] = ""
			fields[prefix+"withheld"] = ""
			fields[prefix+"reclaimable"] = ""
		}
	}

	fields["totalGross"] = totalGross.StringFixed(2)
	fields["totalWithheld"] = totalWithheld.StringFixed(2)
	fields["totalReclaimable"] = totalReclaimable.StringFixed(2)
	fields["dividendCount"] = strconv.Itoa(len(dividends))

	if len(dividends) > ScheduleMaxLines {
		fields["overflowNote"] = fmt.Sprintf(
			"Only the first %d of %d dividends are listed; additional forms are required for the remainder. Totals cover all %d dividends.",
			ScheduleMaxLines, len(dividends), len(dividends))
	} else {
		fields["overflowNote"] = ""
	}

	return fields
}
