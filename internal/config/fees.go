package config

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// FeeSchedule holds the membership fee constants. It is built once at startup
// and passed to the services that need it, so tests can run against alternate
// schedules without touching package state.
type FeeSchedule struct {
	AnnualFee             decimal.Decimal
	MinimumInstallmentFee decimal.Decimal
	DaysPerInstallment    int
	InstallmentDaysCap    int
	RenewalDays           int
}

// GetFeeSchedule returns the fee schedule with defaults (TZS 50,000 annual fee,
// four installments of 90 days each)
func GetFeeSchedule() FeeSchedule {
	viper.SetDefault("membership.annual_fee", "50000.00")
	viper.SetDefault("membership.days_per_installment", 90)
	viper.SetDefault("membership.installment_days_cap", 360)
	viper.SetDefault("membership.renewal_days", 365)

	annual, err := decimal.NewFromString(viper.GetString("membership.annual_fee"))
	if err != nil {
		annual = decimal.NewFromInt(50000)
	}

	return FeeSchedule{
		AnnualFee:             annual,
		MinimumInstallmentFee: annual.Div(decimal.NewFromInt(4)),
		DaysPerInstallment:    viper.GetInt("membership.days_per_installment"),
		InstallmentDaysCap:    viper.GetInt("membership.installment_days_cap"),
		RenewalDays:           viper.GetInt("membership.renewal_days"),
	}
}

// VerifierRoles returns the roles allowed to verify or reject membership
// payments. Superusers bypass this list.
func VerifierRoles() []string {
	viper.SetDefault("membership.verifier_roles", []string{"admin", "accountant"})
	return viper.GetStringSlice("membership.verifier_roles")
}
