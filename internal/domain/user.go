package domain

import "time"

// Role — роль пользователя на маркетплейсе.
type Role string

const (
	RoleClient Role = "client"
	RoleShop   Role = "shop"
	RoleAdmin  Role = "admin"
)

// User — известная системе личность. Источник — справочник, ledger-ы его не меняют.
type User struct {
	ID       string    `json:"id"`
	Phone    string    `json:"phone"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Location *Location `json:"location,omitempty"`
}

// Subscription — тариф магазина.
type Subscription string

const (
	SubscriptionTrial   Subscription = "trial"
	SubscriptionBasic   Subscription = "basic"
	SubscriptionPremier Subscription = "premier"
)

// Shop — магазин воды из каталога.
type Shop struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	OwnerID            string       `json:"ownerId"`
	Location           Location     `json:"location"`
	Phone              string       `json:"phone"`
	OperatingZoneKm    float64      `json:"operatingZoneKm"`
	PricePerLitreMinor int64        `json:"pricePerLitreMinor"`
	MinimumOrderLitres int          `json:"minimumOrderLitres"`
	IsActive           bool         `json:"isActive"`
	Subscription       Subscription `json:"subscription"`
	Rating             float64      `json:"rating"`
}

// Session — текущая аутентифицированная личность.
type Session struct {
	User            *User     `json:"user"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	Token           string    `json:"token,omitempty"`
	IssuedAt        time.Time `json:"issuedAt,omitempty"`
}
