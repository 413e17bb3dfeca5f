// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the only persisted entity.
//
// PairingCode and PartnerID are mutually exclusive: a user either holds a
// code waiting to be claimed, is paired, or neither. PartnerID is symmetric:
// if A.PartnerID == B.ID then B.PartnerID == A.ID.
type User struct {
	ID          int64     `json:"id"           db:"id"`
	Email       string    `json:"email"        db:"email"`        // lowercase, unique
	FullName    *string   `json:"full_name"    db:"full_name"`    // display only
	Picture     *string   `json:"picture"      db:"picture"`      // avatar URL
	PairingCode *string   `json:"pairing_code" db:"pairing_code"` // set while waiting for a partner
	PartnerID   *int64    `json:"partner_id"   db:"partner_id"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}

// IsPaired reports whether the user currently has a partner.
func (u *User) IsPaired() bool {
	return u.PartnerID != nil
}

// HasPairingCode reports whether the user holds an unclaimed pairing code.
func (u *User) HasPairingCode() bool {
	return u.PairingCode != nil && *u.PairingCode != ""
}

// Identity is a verified identity handed over by the external provider.
// Email is the only required field.
type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// PartnerInfo is the public view of a partner returned by pairing endpoints.
type PartnerInfo struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name"`
	Picture   *string `json:"picture"`
	PartnerID *int64  `json:"partner_id"`
}

// NewPartnerInfo projects a User onto the fields exposed to its partner.
func NewPartnerInfo(u *User) PartnerInfo {
	return PartnerInfo{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Picture:   u.Picture,
		PartnerID: u.PartnerID,
	}
}
