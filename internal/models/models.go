package models

import "time"

// Auth providers a user account can originate from
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
	AuthProviderGitHub = "github"
)

// PhoneBrand represents a phone manufacturer
type PhoneBrand struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhoneModel represents a phone model and its physical size in millimeters
type PhoneModel struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	BrandID       int64     `json:"brand_id"`
	WidthMM       float64   `json:"phone_width"`
	HeightMM      float64   `json:"phone_height"`
	MaskPath      string    `json:"s3_path"`
	MaskAvailable bool      `json:"mask_available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User represents an account, local or from an external identity provider
type User struct {
	ID             int64      `json:"-"`
	PublicID       string     `json:"public_id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	PasswordHash   *string    `json:"-"`
	AuthProvider   string     `json:"auth_provider"`
	ProviderUserID *string    `json:"-"`
	IsActive       bool       `json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CatalogItem is the {id, name} pair the phone catalogue returns
type CatalogItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
