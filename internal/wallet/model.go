package wallet

import "time"

// Wallet is a named account. Name is unique among active wallets.
type Wallet struct {
	ID          string
	Name        string
	About       *string
	LogoURL     *string
	CoverURL    *string
	AddToWebMap bool
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch lists the columns a partial update may touch. Nil fields are left
// unchanged.
type Patch struct {
	Name        *string
	About       *string
	LogoURL     *string
	CoverURL    *string
	AddToWebMap *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.About == nil && p.LogoURL == nil && p.CoverURL == nil && p.AddToWebMap == nil
}
