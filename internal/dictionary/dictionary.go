package dictionary

import (
	"sort"
	"strings"

	"github.com/tinoosan/tuition/internal/ledger"
)

// Item is one selectable value offered to the front end.
type Item struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var paymentMethods = []Item{
	{Code: "cash", Label: "Cash"},
	{Code: "check", Label: "Check"},
	{Code: "bank_transfer", Label: "Bank Transfer"},
	{Code: "gcash", Label: "GCash"},
	{Code: "card", Label: "Credit/Debit Card"},
	{Code: "other", Label: "Other"},
}

var curated = map[string][]Item{
	"payment-methods": paymentMethods,
	"statuses": {
		{Code: string(ledger.StatusPaid), Label: "Paid"},
		{Code: string(ledger.StatusPartiallyPaid), Label: "Partially Paid"},
		{Code: string(ledger.StatusUnpaid), Label: "Unpaid"},
		{Code: string(ledger.StatusOverdue), Label: "Overdue"},
	},
	"notification-types": {
		{Code: string(ledger.NotificationReminder), Label: "Payment Reminder"},
		{Code: string(ledger.NotificationOverdue), Label: "Overdue Payment"},
	},
	"terms": {
		{Code: "1st_term", Label: "1st Term"},
		{Code: "2nd_term", Label: "2nd Term"},
		{Code: "3rd_term", Label: "3rd Term"},
		{Code: "summer", Label: "Summer"},
	},
}

// Lookup returns the named dictionary, or false when it does not exist.
func Lookup(name string) ([]Item, bool) {
	items, ok := curated[strings.ToLower(name)]
	return items, ok
}

// Names lists the available dictionaries in sorted order.
func Names() []string {
	out := make([]string, 0, len(curated))
	for k := range curated {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsPaymentMethod reports whether code is a known payment method. Empty is accepted as "unspecified".
func IsPaymentMethod(code string) bool {
	if code == "" {
		return true
	}
	for _, m := range paymentMethods {
		if strings.EqualFold(m.Code, code) {
			return true
		}
	}
	return false
}
