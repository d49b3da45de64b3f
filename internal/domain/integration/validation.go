package integration

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// LedgerRejection is a candidate excluded from a batch and why.
type LedgerRejection struct {
	Candidate LedgerCandidate
	Err       *ValidationError
}

// maxLedgerQuantity is 2^63; float64(math.MaxInt64) rounds up to it, so the
// bound has to be exclusive.
var maxLedgerQuantity = math.Exp2(63)

var ledgerValidator = newLedgerValidator()

func newLedgerValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("tenant_id", func(fl validator.FieldLevel) bool {
		id, ok := fl.Field().Interface().(uuid.UUID)
		return ok && id != uuid.Nil && id.Variant() == uuid.RFC4122
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	_ = v.RegisterValidation("whole", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f == math.Trunc(f) && math.Abs(f) < maxLedgerQuantity
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(LedgerCandidate)
		if c.Quantity != math.Trunc(c.Quantity) || math.Abs(c.Quantity) >= maxLedgerQuantity {
			// reported by the quantity rules
			return
		}
		// compare against the value that will be stored
		q := 0
		switch stored := int64(c.Quantity); {
		case stored > 0:
			q = 1
		case stored < 0:
			q = -1
		}
		if r := c.Revenue.Sign(); r != 0 && r != q {
			sl.ReportError(c.Revenue, "Revenue", "Revenue", "same_sign", "")
		}
	}, LedgerCandidate{})

	return v
}

// ValidateLedgerCandidate checks one candidate. Negative quantities are valid.
func ValidateLedgerCandidate(c LedgerCandidate) *ValidationError {
	err := ledgerValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "candidate", Rule: "struct", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{
		Field:  fe.Field(),
		Rule:   fe.Tag(),
		Value:  fe.Value(),
		Reason: describeRule(fe),
	}
}

// ValidateLedgerEntries splits candidates into storable entries and rejections.
// A bad candidate never blocks the others.
func ValidateLedgerEntries(candidates []LedgerCandidate) ([]SalesLedgerEntry, []LedgerRejection) {
	valid := make([]SalesLedgerEntry, 0, len(candidates))
	var rejected []LedgerRejection
	for _, c := range candidates {
		if verr := ValidateLedgerCandidate(c); verr != nil {
			rejected = append(rejected, LedgerRejection{Candidate: c, Err: verr})
			continue
		}
		valid = append(valid, c.Entry())
	}
	return valid, rejected
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "tenant_id":
		return "tenant identifier is missing or malformed"
	case "required":
		return "must not be empty"
	case "datetime":
		return fmt.Sprintf("must be a calendar date in %s format", fe.Param())
	case "finite":
		return "quantity must be a finite number"
	case "whole":
		return "quantity must be a whole unit count"
	case "same_sign":
		return "revenue must have the same sign as quantity"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
