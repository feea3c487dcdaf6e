package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"tradeking/internal/strategy"
	"tradeking/pkg/db"
)

type contractView struct {
	Symbol     string  `json:"symbol"`
	BaseAsset  string  `json:"base_asset"`
	QuoteAsset string  `json:"quote_asset"`
	TickSize   float64 `json:"tick_size"`
	LotSize    float64 `json:"lot_size"`
	Inverse    bool    `json:"inverse"`
	Quanto     bool    `json:"quanto"`
	Multiplier float64 `json:"multiplier"`
}

// getContracts returns the instrument catalogs, optionally filtered to one
// venue via ?exchange=.
func (s *Server) getContracts(c *gin.Context) {
	filter := c.Query("exchange")
	if filter != "" {
		if _, ok := s.Manager.Connector(filter); !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"code":  "UNKNOWN_EXCHANGE",
				"error": "unknown exchange " + filter,
			})
			return
		}
	}

	out := gin.H{}
	for _, name := range s.Manager.Platforms() {
		if filter != "" && name != filter {
			continue
		}
		conn, _ := s.Manager.Connector(name)
		catalog := conn.Contracts()

		views := make([]contractView, 0, len(catalog))
		for _, ct := range catalog {
			views = append(views, contractView{
				Symbol:     ct.Symbol,
				BaseAsset:  ct.BaseAsset,
				QuoteAsset: ct.QuoteAsset,
				TickSize:   ct.TickSize,
				LotSize:    ct.LotSize,
				Inverse:    ct.Inverse,
				Quanto:     ct.Quanto,
				Multiplier: ct.Multiplier,
			})
		}
		sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })
		out[name] = views
	}
	c.JSON(http.StatusOK, out)
}

// getPrices returns the latest cached best bid/ask per venue.
func (s *Server) getPrices(c *gin.Context) {
	out := gin.H{}
	for exchange, quotes := range s.Manager.Prices() {
		prices := gin.H{}
		for sym, q := range quotes {
			prices[sym] = gin.H{"bid": q.Bid, "ask": q.Ask}
		}
		out[exchange] = prices
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, s.Manager.Watchlist())
}

func (s *Server) putWatchlist(c *gin.Context) {
	var entries []db.WatchRow
	if err := c.BindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	for _, w := range entries {
		if w.Symbol == "" || w.Exchange == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_ENTRY",
				"error": "symbol and exchange are required",
			})
			return
		}
	}

	if err := s.Manager.SetWatchlist(c.Request.Context(), entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "WATCHLIST_REJECTED",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries)})
}

type strategyView struct {
	ID         string  `json:"id"`
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"strategy_type"`
	Rule       string  `json:"rule"`
	Timeframe  string  `json:"timeframe"`
	BalancePct float64 `json:"balance_pct"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}

func (s *Server) getStrategies(c *gin.Context) {
	instances := s.Manager.Instances()
	views := make([]strategyView, 0, len(instances))
	for id, inst := range instances {
		cfg := inst.Config()
		views = append(views, strategyView{
			ID:         id,
			Exchange:   cfg.Exchange,
			Symbol:     cfg.Symbol,
			Type:       cfg.Type,
			Rule:       inst.RuleName(),
			Timeframe:  cfg.Timeframe,
			BalancePct: cfg.BalancePct,
			TakeProfit: cfg.TakeProfit,
			StopLoss:   cfg.StopLoss,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	c.JSON(http.StatusOK, views)
}

func (s *Server) createStrategy(c *gin.Context) {
	var cfg strategy.Config
	if err := c.BindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if cfg.TakeProfit < 0 || cfg.StopLoss < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_THRESHOLD",
			"error": "take_profit and stop_loss must not be negative",
		})
		return
	}

	id, err := s.Manager.Activate(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "ACTIVATION_FAILED",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) deleteStrategy(c *gin.Context) {
	if err := s.Manager.Deactivate(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "UNKNOWN_STRATEGY",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// getLogs drains undelivered operator log entries; each entry is returned
// exactly once.
func (s *Server) getLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.Manager.CollectLogs()})
}

func (s *Server) getTrades(c *gin.Context) {
	c.JSON(http.StatusOK, s.Manager.Trades())
}
