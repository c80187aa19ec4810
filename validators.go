package dialogsdk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ──────────────────────────────────────────────
// Validator Chain — per-slot value validation and normalization
// ──────────────────────────────────────────────

// ValidateFunc validates a raw user value against the values filled so far
// and returns the normalized value. Errors are *ValidationError wrapping one
// of the sentinel errors; the caller re-prompts the same slot.
type ValidateFunc func(ctx context.Context, raw string, filled map[string]string) (string, error)

// Chain runs validators in order, feeding each one the previous normalized
// value. The first failure wins.
func Chain(validators ...ValidateFunc) ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		value := raw
		for _, v := range validators {
			normalized, err := v(ctx, value, filled)
			if err != nil {
				return "", err
			}
			value = normalized
		}
		return value, nil
	}
}

// ─── Phone numbers ───

var nonDigitRe = regexp.MustCompile(`\D`)

// PhoneValidator accepts digits optionally prefixed with one of the given
// country calling codes (default "91"), strips the prefix, and requires
// exactly 10 digits after stripping.
func PhoneValidator(countryCodes ...string) ValidateFunc {
	if len(countryCodes) == 0 {
		countryCodes = []string{"91"}
	}
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		digits := nonDigitRe.ReplaceAllString(raw, "")
		for _, code := range countryCodes {
			if strings.HasPrefix(digits, code) && len(digits) == len(code)+10 {
				digits = digits[len(code):]
				break
			}
		}
		// A single leading zero before a 10-digit number is a common trunk prefix.
		if len(digits) == 11 && digits[0] == '0' {
			digits = digits[1:]
		}
		if len(digits) != 10 {
			return "", newValidationError("", ErrInvalidFormat, "please send a 10-digit phone number")
		}
		return digits, nil
	}
}

// ─── Tax IDs ───

var taxIDRe = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// TaxIDValidator requires a 10-character PAN-style ID: 5 letters, 4 digits,
// 1 letter. Input is case-insensitive and normalized to uppercase.
func TaxIDValidator() ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		upper := strings.ToUpper(strings.TrimSpace(raw))
		if !taxIDRe.MatchString(upper) {
			return "", newValidationError("", ErrInvalidFormat, "the ID should look like ABCDE1234F")
		}
		return upper, nil
	}
}

// ─── Monetary amounts ───

// magnitudeWords maps informal magnitude suffixes to multipliers.
var magnitudeWords = map[string]int64{
	"k":        1000,
	"thousand": 1000,
	"hazaar":   1000,
	"hazar":    1000,
	"lakh":     100000,
	"lac":      100000,
	"lakhs":    100000,
}

// AmountValidator parses integers with informal magnitude notation: comma
// separators are stripped, a trailing "k" multiplies by 1,000, and
// spelled-out magnitude words (thousand, lakh, ...) map to their value.
// min > 0 enforces a floor.
func AmountValidator(min int64) ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		amount, ok := parseAmount(raw)
		if !ok {
			return "", newValidationError("", ErrInvalidFormat, "please send an amount like 2000 or 15k")
		}
		if min > 0 && amount < min {
			return "", newValidationError("", ErrBelowMinimum,
				"the amount must be at least "+strconv.FormatInt(min, 10))
		}
		return strconv.FormatInt(amount, 10), nil
	}
}

func parseAmount(raw string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "rs.")
	s = strings.TrimPrefix(s, "rs")
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	multiplier := int64(1)
	// Trailing magnitude word: "15 thousand", "2 lakh".
	if fields := strings.Fields(s); len(fields) == 2 {
		if m, ok := magnitudeWords[fields[1]]; ok {
			multiplier = m
			s = fields[0]
		}
	}
	// Trailing "k" without a space: "15k".
	if multiplier == 1 && strings.HasSuffix(s, "k") {
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	}

	if multiplier > 1 {
		// Fractional values are meaningful with a multiplier: "1.5k" = 1500.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		scaled := f * float64(multiplier)
		n := int64(scaled)
		if float64(n) != scaled {
			return 0, false
		}
		return n, true
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ─── Enums ───

// EnumValidator accepts one of the canonical values, matched
// case-insensitively against the message (substring match, longest value
// first), and normalizes to the canonical form.
func EnumValidator(values ...string) ValidateFunc {
	ordered := make([]string, len(values))
	copy(ordered, values)
	// Longest first so "bank transfer" beats "bank".
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && len(ordered[j]) > len(ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		lower := strings.ToLower(strings.TrimSpace(raw))
		for _, v := range ordered {
			if strings.Contains(lower, strings.ToLower(v)) {
				return v, nil
			}
		}
		return "", newValidationError("", ErrInvalidFormat,
			"please choose one of: "+strings.Join(values, ", "))
	}
}

// ─── Exclusive choice ───

// ExclusiveChoice rejects a fill attempt when any of the alternate slots is
// already filled. Used for mutually exclusive pairs such as UPI vs. bank
// account.
func ExclusiveChoice(alternates ...string) ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		for _, alt := range alternates {
			if filled[alt] != "" {
				return "", newValidationError("", ErrConflictingChoice,
					"you already provided "+alt+"; correct it first if you want to switch")
			}
		}
		return raw, nil
	}
}

// ─── External verification ───

// VerificationStatus is the outcome reported by an external verifier.
type VerificationStatus string

const (
	VerificationValid       VerificationStatus = "valid"
	VerificationInvalid     VerificationStatus = "invalid"
	VerificationUnavailable VerificationStatus = "unavailable"
)

// VerificationResult is the verifier's response.
type VerificationResult struct {
	Status         VerificationStatus
	NormalizedName string
}

// VerifierFunc calls an out-of-scope verification service.
type VerifierFunc func(ctx context.Context, value string, filled map[string]string) (VerificationResult, error)

// ExternalVerification wraps a suspending verifier call with a bounded
// timeout. Transport errors and explicit "unavailable" responses map to
// ErrVerificationUnavailable (retryable); an "invalid" verdict maps to
// ErrVerificationRejected.
func ExternalVerification(verify VerifierFunc, timeout time.Duration) ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		vctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			vctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err := verify(vctx, raw, filled)
		if err != nil {
			componentLogger("validator").Warn().Err(err).Msg("verification service unreachable")
			return "", newValidationError("", ErrVerificationUnavailable,
				"verification is temporarily unavailable, please try again")
		}
		switch result.Status {
		case VerificationValid:
			return raw, nil
		case VerificationInvalid:
			return "", newValidationError("", ErrVerificationRejected,
				"that value failed verification, please check and resend")
		default:
			return "", newValidationError("", ErrVerificationUnavailable,
				"verification is temporarily unavailable, please try again")
		}
	}
}

// digitsOf strips every non-digit rune. Used for self-reference comparison
// between slot values and user keys that may carry formatting.
func digitsOf(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}
