package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListPrices(c *gin.Context) {
	snap := s.priceSvc.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"data":       snap.Prices,
		"lastUpdate": snap.LastUpdate,
	})
}

func (s *Server) GetPrice(c *gin.Context) {
	key := c.Param("asset")
	snap := s.priceSvc.Snapshot()
	entry, ok := snap.Prices[key]
	if !ok {
		available := make([]string, 0, len(s.assets))
		for asset := range s.assets {
			available = append(available, asset)
		}
		sort.Strings(available)
		c.JSON(http.StatusNotFound, gin.H{
			"status":    "error",
			"message":   "Asset not found",
			"available": available,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"asset":      key,
		"data":       entry,
		"lastUpdate": snap.LastUpdate,
	})
}

// RefreshPrices forces one refresh cycle outside the poll loop. Upstream
// failures are absorbed by the cache, so the response always carries the
// last-known-good table.
func (s *Server) RefreshPrices(c *gin.Context) {
	s.priceSvc.RefreshAll(c.Request.Context())
	snap := s.priceSvc.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"data":       snap.Prices,
		"lastUpdate": snap.LastUpdate,
	})
}
