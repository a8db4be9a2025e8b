package navigator

import "github.com/mercavia/sheinscrape/models"

// Kind classifies the result of a navigation attempt.
type Kind int

const (
	// KindSuccess: the product page rendered.
	KindSuccess Kind = iota
	// KindBlocked: the storefront served a risk/challenge page instead.
	KindBlocked
	// KindTimedOut: the attempt exceeded its time bound.
	KindTimedOut
	// KindTransportError: no usable response (DNS, proxy, connection).
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindBlocked:
		return "blocked"
	case KindTimedOut:
		return "timed_out"
	case KindTransportError:
		return "transport_error"
	}
	return "unknown"
}

// Outcome is the classification of one navigation attempt. The terminal
// outcome of the retry loop is what escapes to the caller.
type Outcome struct {
	Kind     Kind
	FinalURL string

	// Markup is the rendered HTML captured at classification time. Only
	// populated for Success and Blocked (the two kinds that had a page
	// to read).
	Markup    string
	MarkupLen int

	// Message carries the transport error text, when there is one.
	Message string
}

// Err maps a non-success outcome to its typed error. Success yields nil.
func (o Outcome) Err() *models.ScrapeError {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindBlocked:
		return models.NewScrapeError(models.ErrCodeBlocked,
			"target classified the traffic as automated", nil)
	case KindTimedOut:
		return models.NewScrapeError(models.ErrCodeTimeout,
			"navigation exceeded its time bound", nil)
	default:
		msg := o.Message
		if msg == "" {
			msg = "no response obtained"
		}
		return models.NewScrapeError(models.ErrCodeTransport, msg, nil)
	}
}
