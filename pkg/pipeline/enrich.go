package pipeline

import (
	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/classifier"
	"github.com/ArionMiles/notispend/pkg/metrics"
)

// StageCaller marks an expense type supplied with the notification.
const StageCaller classifier.Stage = "caller"

// Report records how a notification was enriched.
type Report struct {
	Stage       classifier.Stage
	ExpenseType string
	// Extraction is one of the metrics.Amount* labels.
	Extraction string
}

// Enrich fills in the expense type and the amount/currency pair when the
// caller did not supply them. It never modifies n; the enriched copy is returned.
func Enrich(n api.Notification) (api.Notification, Report, error) {
	if err := n.Validate(); err != nil {
		return n, Report{}, err
	}

	out := n
	var report Report

	if n.ExpenseType != nil && *n.ExpenseType != "" {
		report.Stage = StageCaller
		report.ExpenseType = *n.ExpenseType
	} else {
		cat, stage := classifier.Detect(n.TitleString(), n.TextString())
		report.Stage = stage
		out.ExpenseType = nil
		if cat != classifier.Unknown {
			label := string(cat)
			out.ExpenseType = &label
			report.ExpenseType = label
		}
	}

	if n.Amount != nil {
		report.Extraction = metrics.AmountCaller
		return out, report, nil
	}

	res, err := amount.Extract(n.TextString())
	if err != nil {
		return n, report, err
	}
	if res == nil {
		report.Extraction = metrics.AmountNotFound
		return out, report, nil
	}

	value, currency := res.Amount, res.Currency
	out.Amount = &value
	out.Currency = &currency
	report.Extraction = metrics.AmountFound
	return out, report, nil
}
