package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a node in an owner's chart of accounts
type Account struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"ownerId"`
	OrganizationID string           `json:"organizationId,omitempty"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	AccountType    AccountType      `json:"accountType"`
	NormalBalance  NormalBalance    `json:"normalBalance,omitempty"`
	Balance        *decimal.Decimal `json:"balance,omitempty"`
	InitialBalance *decimal.Decimal `json:"initialBalance,omitempty"`
	IsActive       *bool            `json:"isActive,omitempty"`
	ParentID       string           `json:"parentId,omitempty"`
	DeletedAt      *time.Time       `json:"deletedAt,omitempty"`
}

// Active reports whether the account is active. An unset flag counts as active.
func (a *Account) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// DisplayName returns the name used when reporting on the account
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Code != "" {
		return a.Code
	}
	return a.ID
}

// EffectiveNormalBalance returns the configured normal balance, or the type-derived default when unset
func (a *Account) EffectiveNormalBalance() NormalBalance {
	if a.NormalBalance != "" {
		return a.NormalBalance
	}
	return a.AccountType.DefaultNormalBalance()
}

// AccountRef is an entry's reference to an account. Stored documents carry either
// the bare account id or the resolved account object.
type AccountRef struct {
	ID       string
	Resolved *Account
}

// RefID creates a reference holding only an account id
func RefID(id string) AccountRef {
	return AccountRef{ID: id}
}

// RefAccount creates a reference carrying a resolved account
func RefAccount(a Account) AccountRef {
	return AccountRef{ID: a.ID, Resolved: &a}
}

// IsZero reports whether the reference points nowhere
func (r AccountRef) IsZero() bool {
	return r.ID == ""
}

// MarshalJSON writes the resolved object when present, otherwise the bare id
func (r AccountRef) MarshalJSON() ([]byte, error) {
	if r.Resolved != nil {
		return json.Marshal(r.Resolved)
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts a string id, an account object, or null
func (r *AccountRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = AccountRef{}
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = AccountRef{ID: id}
		return nil
	case data[0] == '{':
		var a Account
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decode embedded account: %w", err)
		}
		*r = AccountRef{ID: a.ID, Resolved: &a}
		return nil
	default:
		return fmt.Errorf("account reference must be a string or object, got %s", string(data))
	}
}

// UnmarshalTOML accepts a string id or an inline table describing the account
func (r *AccountRef) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*r = AccountRef{ID: val}
		return nil
	case map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encode embedded account: %w", err)
		}
		return r.UnmarshalJSON(raw)
	default:
		return fmt.Errorf("account reference must be a string or table, got %T", v)
	}
}
