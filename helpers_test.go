package dialogsdk

import (
	"context"
	"fmt"
)

// Shared fixtures: a worker-onboarding intent with a UPI-vs-bank branch, a
// cash-advance intent, and a slotless general intent.

func onboardingIntent() *IntentDefinition {
	return &IntentDefinition{
		Name:        "onboarding",
		StrongHints: []string{"onboard", "add worker", "new worker"},
		WeakHints:   []string{"worker", "maid", "join"},
		Slots: []SlotDefinition{
			{
				ID:         "phone",
				Prompt:     "What is the worker's phone number?",
				Type:       SlotString,
				Validate:   PhoneValidator("91"),
				RejectSelf: true,
			},
			{
				ID:       "payment_method",
				Prompt:   "How should the salary be paid: upi or bank?",
				Type:     SlotEnum,
				Values:   []string{"upi", "bank"},
				Validate: EnumValidator("upi", "bank"),
			},
			{
				ID:        "upi_id",
				Prompt:    "What is the worker's UPI ID?",
				Type:      SlotString,
				Validate:  Chain(ExclusiveChoice("bank_account"), upiIDValidator()),
				DependsOn: SlotEquals("payment_method", "upi"),
			},
			{
				ID:        "bank_account",
				Prompt:    "What is the worker's bank account number?",
				Type:      SlotString,
				Validate:  ExclusiveChoice("upi_id"),
				DependsOn: SlotEquals("payment_method", "bank"),
			},
			{
				ID:        "ifsc",
				Prompt:    "What is the bank IFSC code?",
				Type:      SlotString,
				DependsOn: SlotEquals("payment_method", "bank"),
			},
			{
				ID:       "tax_id",
				Prompt:   "What is the worker's tax ID?",
				Type:     SlotString,
				Validate: TaxIDValidator(),
			},
			{
				ID:       "salary",
				Prompt:   "What is the monthly salary?",
				Type:     SlotInt,
				Validate: AmountValidator(500),
			},
		},
		NeedsConfirmation: true,
	}
}

func advanceIntent() *IntentDefinition {
	return &IntentDefinition{
		Name:        "cash_advance",
		StrongHints: []string{"advance", "cash advance"},
		WeakHints:   []string{"money", "paisa"},
		Slots: []SlotDefinition{
			{
				ID:         "worker_phone",
				Prompt:     "Which worker is this advance for? Send their phone number.",
				Type:       SlotString,
				Validate:   PhoneValidator("91"),
				RejectSelf: true,
			},
			{
				ID:       "amount",
				Prompt:   "How much is the advance?",
				Type:     SlotInt,
				Validate: AmountValidator(500),
			},
		},
		NeedsConfirmation: true,
	}
}

func generalIntent() *IntentDefinition {
	return &IntentDefinition{Name: IntentGeneral}
}

// upiIDValidator keeps the fixture realistic without a full VPA parser.
func upiIDValidator() ValidateFunc {
	return func(ctx context.Context, raw string, filled map[string]string) (string, error) {
		for i, r := range raw {
			if r == '@' && i > 0 && i < len(raw)-1 {
				return raw, nil
			}
		}
		return "", newValidationError("", ErrInvalidFormat, "a UPI ID looks like name@bank")
	}
}

func newTestRegistry() *SchemaRegistry {
	r := NewSchemaRegistry()
	for _, def := range []*IntentDefinition{onboardingIntent(), advanceIntent(), generalIntent()} {
		if err := r.Register(def); err != nil {
			panic(fmt.Sprintf("register %s: %v", def.Name, err))
		}
	}
	return r
}

func newTestTracker(cfg ...TrackerConfig) *Tracker {
	return NewTracker(newTestRegistry(), NewInMemoryStateStore(), cfg...)
}
