package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/services/bondingd/history"
)

type tradeRecordView struct {
	Seq           uint64     `json:"seq"`
	ID            string     `json:"id"`
	Side          string     `json:"side"`
	Trader        string     `json:"trader"`
	Price         amountView `json:"price"`
	TotalTarget   amountView `json:"total_target"`
	BaseRoyalty   amountView `json:"base_royalty"`
	TargetRoyalty amountView `json:"target_royalty"`

	ReserveBalanceFromBonding amountView `json:"reserve_balance_from_bonding"`
	SupplyFromBonding         amountView `json:"supply_from_bonding"`
	ExecutedAt                time.Time  `json:"executed_at"`
}

func newTradeRecordView(trade history.Trade, decimals mintDecimals) tradeRecordView {
	return tradeRecordView{
		Seq:                       trade.Seq,
		ID:                        trade.ID.String(),
		Side:                      trade.Side,
		Trader:                    trade.Trader,
		Price:                     newAmount(trade.Price, decimals.base),
		TotalTarget:               newAmount(trade.TotalTarget, decimals.target),
		BaseRoyalty:               newAmount(trade.BaseRoyalty, decimals.base),
		TargetRoyalty:             newAmount(trade.TargetRoyalty, decimals.target),
		ReserveBalanceFromBonding: newAmount(trade.Reserves, decimals.base),
		SupplyFromBonding:         newAmount(trade.Supply, decimals.target),
		ExecutedAt:                trade.CreatedAt.UTC(),
	}
}

// listTrades pages through indexed trades, newest first. ?before=<seq>
// continues from the last page.
func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return
	}
	_, decimals, err := s.loadBonding(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	limit, before := 0, uint64(0)
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), "limit must be a non-negative integer")
			return
		}
	}
	if raw := strings.TrimSpace(query.Get("before")); raw != "" {
		if before, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), "before must be a trade sequence")
			return
		}
	}
	trades, err := s.history.List(r.Context(), key.String(), before, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]tradeRecordView, 0, len(trades))
	for _, trade := range trades {
		out = append(out, newTradeRecordView(trade, decimals))
	}
	writeJSON(w, http.StatusOK, map[string][]tradeRecordView{"trades": out})
}
