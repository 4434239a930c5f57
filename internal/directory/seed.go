package directory

import "github.com/vladislavdragonenkov/watermate/internal/domain"

// SeedUsers — демо-пользователи маркетплейса.
func SeedUsers() []domain.User {
	return []domain.User{
		{ID: "admin-1", Phone: "+254700000001", Name: "Admin User", Role: domain.RoleAdmin},
		{ID: "shop-1", Phone: "+254700000002", Name: "John Mwangi", Role: domain.RoleShop},
		{ID: "shop-2", Phone: "+254700000003", Name: "Grace Wanjiku", Role: domain.RoleShop},
		{
			ID: "client-1", Phone: "+254700000004", Name: "Peter Kimani", Role: domain.RoleClient,
			Location: &domain.Location{Latitude: -1.2921, Longitude: 36.8219, Address: "CBD, Nairobi"},
		},
		{
			ID: "client-2", Phone: "+254700000005", Name: "Mary Njeri", Role: domain.RoleClient,
			Location: &domain.Location{Latitude: -1.3032, Longitude: 36.7073, Address: "Karen, Nairobi"},
		},
	}
}

// SeedShops — демо-каталог магазинов в Найроби. Цены в центах KES.
func SeedShops() []domain.Shop {
	return []domain.Shop{
		{
			ID:                 "shop-1",
			Name:               "Pure Water Westlands",
			OwnerID:            "shop-1",
			Location:           domain.Location{Latitude: -1.2676, Longitude: 36.8108, Address: "Westlands Shopping Center, Nairobi"},
			Phone:              "+254700000002",
			OperatingZoneKm:    5,
			PricePerLitreMinor: 500,
			MinimumOrderLitres: 10,
			IsActive:           true,
			Subscription:       domain.SubscriptionPremier,
			Rating:             4.8,
		},
		{
			ID:                 "shop-2",
			Name:               "Crystal Clear Karen",
			OwnerID:            "shop-2",
			Location:           domain.Location{Latitude: -1.3194, Longitude: 36.7085, Address: "Karen Shopping Center, Nairobi"},
			Phone:              "+254700000003",
			OperatingZoneKm:    8,
			PricePerLitreMinor: 450,
			MinimumOrderLitres: 15,
			IsActive:           true,
			Subscription:       domain.SubscriptionBasic,
			Rating:             4.6,
		},
		{
			ID:                 "shop-3",
			Name:               "Fresh Flow Kilimani",
			OwnerID:            "shop-1",
			Location:           domain.Location{Latitude: -1.2905, Longitude: 36.7935, Address: "Kilimani Plaza, Nairobi"},
			Phone:              "+254700000006",
			OperatingZoneKm:    6,
			PricePerLitreMinor: 550,
			MinimumOrderLitres: 10,
			IsActive:           true,
			Subscription:       domain.SubscriptionTrial,
			Rating:             4.2,
		},
	}
}

// NewSeeded возвращает каталог с демо-данными.
func NewSeeded() *Catalog {
	return New(SeedUsers(), SeedShops())
}
