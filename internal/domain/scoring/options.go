package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPenaltyWeight sets the points removed per critical event. Product
// variants use 3 or 5.
func WithPenaltyWeight(weight int) Option {
	return func(e *Engine) {
		if weight > 0 {
			e.penaltyWeight = weight
		}
	}
}

// WithBaseDiscount sets the premium discount granted at a perfect index.
func WithBaseDiscount(amount float64) Option {
	return func(e *Engine) {
		if amount >= 0 {
			e.baseDiscount = amount
		}
	}
}

// WithCurrency sets the currency code reported with the discount.
func WithCurrency(code string) Option {
	return func(e *Engine) {
		if code != "" {
			e.currency = code
		}
	}
}

// WithValidatedAppealsExcluded drops events whose appeal was validated from
// the critical count.
func WithValidatedAppealsExcluded(exclude bool) Option {
	return func(e *Engine) {
		e.excludeValidated = exclude
	}
}
