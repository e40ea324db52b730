package enums

import "fmt"

// WalletOwnerKind distinguishes restaurant and driver wallets.
type WalletOwnerKind string

const (
	WalletOwnerRestaurant WalletOwnerKind = "restaurant"
	WalletOwnerDriver     WalletOwnerKind = "driver"
)

var validWalletOwnerKinds = []WalletOwnerKind{
	WalletOwnerRestaurant,
	WalletOwnerDriver,
}

// IsValid reports whether the value is a known WalletOwnerKind.
func (w WalletOwnerKind) IsValid() bool {
	for _, candidate := range validWalletOwnerKinds {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletOwnerKind converts raw input into a WalletOwnerKind.
func ParseWalletOwnerKind(value string) (WalletOwnerKind, error) {
	for _, candidate := range validWalletOwnerKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet owner kind %q", value)
}

// WalletEntryType labels an append-only ledger entry. The amount on the
// entry is always positive; the sign is carried by the type/direction pair.
type WalletEntryType string

const (
	WalletEntryCredit     WalletEntryType = "credit"
	WalletEntryDebit      WalletEntryType = "debit"
	WalletEntryAdjustment WalletEntryType = "adjustment"
)

var validWalletEntryTypes = []WalletEntryType{
	WalletEntryCredit,
	WalletEntryDebit,
	WalletEntryAdjustment,
}

// IsValid reports whether the value is a known WalletEntryType.
func (w WalletEntryType) IsValid() bool {
	for _, candidate := range validWalletEntryTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletEntryType converts raw input into a WalletEntryType.
func ParseWalletEntryType(value string) (WalletEntryType, error) {
	for _, candidate := range validWalletEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry type %q", value)
}

// WalletEntryDirection resolves the sign applied to the wallet balance.
type WalletEntryDirection string

const (
	WalletDirectionIn  WalletEntryDirection = "in"
	WalletDirectionOut WalletEntryDirection = "out"
)

// IsValid reports whether the value is a known WalletEntryDirection.
func (w WalletEntryDirection) IsValid() bool {
	return w == WalletDirectionIn || w == WalletDirectionOut
}
