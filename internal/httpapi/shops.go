package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/watermate/internal/directory"
	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// nearbyShops ищет магазины, доставляющие в точку lat/lng.
// Без координат берётся сохранённый адрес пользователя.
func (h *Handler) nearbyShops(c *gin.Context) {
	at, ok := requestLocation(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}

	shops := h.shops.NearbyShops(at)
	if shops == nil {
		shops = []directory.NearbyShop{}
	}
	c.JSON(http.StatusOK, gin.H{"shops": shops})
}

func requestLocation(c *gin.Context) (domain.Location, bool) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" && lngRaw == "" {
		if user, ok := currentUser(c); ok && user.Location != nil {
			return *user.Location, true
		}
		return domain.Location{}, false
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Location{}, false
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil || lng < -180 || lng > 180 {
		return domain.Location{}, false
	}
	return domain.Location{Latitude: lat, Longitude: lng}, true
}
