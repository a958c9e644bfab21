package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/StrataFoundation/strata-sub000/core/state"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
	"github.com/StrataFoundation/strata-sub000/observability/logging"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

// statusFor maps an engine or ledger failure onto an HTTP status.
func statusFor(err error) (int, string) {
	if code, ok := bonding.CodeOf(err); ok {
		switch code {
		case bonding.CodeNotFound:
			return http.StatusNotFound, code.String()
		case bonding.CodeAlreadyExists:
			return http.StatusConflict, code.String()
		case bonding.CodeInvalidArgs, bonding.CodeInvalidMint, bonding.CodeInvalidPad, bonding.CodeInvalidCurve,
			bonding.CodeIgnoreFlagUnsupportedInLegacy:
			return http.StatusBadRequest, code.String()
		case bonding.CodeNoAuthority, bonding.CodeInvalidAuthority:
			return http.StatusForbidden, code.String()
		default:
			return http.StatusUnprocessableEntity, code.String()
		}
	}
	switch {
	case errors.Is(err, state.ErrUnknownAccount), errors.Is(err, state.ErrUnknownMint),
		errors.Is(err, state.ErrMintMismatch):
		return http.StatusBadRequest, "InvalidAccount"
	case errors.Is(err, state.ErrUnauthorized):
		return http.StatusForbidden, "Unauthorized"
	case errors.Is(err, state.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "InsufficientFunds"
	}
	return http.StatusInternalServerError, "Internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("bondingd: request failed", "route", r.URL.Path, "error", err)
	}
	writeError(w, status, code, err.Error())
}

func pathKey(r *http.Request) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(chi.URLParam(r, "key"))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid key: %w", err)
	}
	return key, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func keyString(key *solana.PublicKey) *string {
	if key == nil {
		return nil
	}
	out := key.String()
	return &out
}

// percentage renders a u32 fraction of MaxUint32 as a percent.
func percentage(value uint32) string {
	return decimal.NewFromInt(int64(value)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(math.MaxUint32)).
		StringFixed(4)
}

type amountView struct {
	Raw     uint64 `json:"raw"`
	Display string `json:"display"`
}

func newAmount(raw uint64, decimals uint8) amountView {
	return amountView{Raw: raw, Display: precise.FormatAmount(raw, decimals)}
}

type royaltyView struct {
	Account    string `json:"account"`
	Percentage string `json:"percentage"`
}

type bondingView struct {
	Key        string `json:"key"`
	BaseMint   string `json:"base_mint"`
	TargetMint string `json:"target_mint"`
	Curve      string `json:"curve"`
	Index      uint16 `json:"index"`
	Phase      string `json:"phase"`

	GeneralAuthority *string `json:"general_authority"`
	ReserveAuthority *string `json:"reserve_authority"`
	CurveAuthority   *string `json:"curve_authority"`

	BaseStorage string     `json:"base_storage"`
	Escrow      amountView `json:"escrow"`

	BuyBaseRoyalty    royaltyView `json:"buy_base_royalty"`
	BuyTargetRoyalty  royaltyView `json:"buy_target_royalty"`
	SellBaseRoyalty   royaltyView `json:"sell_base_royalty"`
	SellTargetRoyalty royaltyView `json:"sell_target_royalty"`

	MintCap     *uint64 `json:"mint_cap,omitempty"`
	PurchaseCap *uint64 `json:"purchase_cap,omitempty"`

	GoLiveUnix    int64  `json:"go_live_unix"`
	FreezeBuyUnix *int64 `json:"freeze_buy_unix,omitempty"`
	CreatedAtUnix int64  `json:"created_at_unix"`
	BuyFrozen     bool   `json:"buy_frozen"`
	SellFrozen    bool   `json:"sell_frozen"`

	ReserveBalanceFromBonding amountView `json:"reserve_balance_from_bonding"`
	SupplyFromBonding         amountView `json:"supply_from_bonding"`

	IgnoreExternalReserveChanges bool `json:"ignore_external_reserve_changes"`
	IgnoreExternalSupplyChanges  bool `json:"ignore_external_supply_changes"`
}

type mintDecimals struct {
	base, target uint8
}

func (s *Server) decimalsOf(record *bonding.TokenBonding) (mintDecimals, error) {
	var out mintDecimals
	base, ok, err := s.proc.MintInfo(record.BaseMint)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("%w: base mint %s", state.ErrUnknownMint, record.BaseMint)
	}
	target, ok, err := s.proc.MintInfo(record.TargetMint)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("%w: target mint %s", state.ErrUnknownMint, record.TargetMint)
	}
	out.base, out.target = base.Decimals, target.Decimals
	return out, nil
}

func (s *Server) loadBonding(key solana.PublicKey) (*bonding.TokenBonding, mintDecimals, error) {
	record, err := s.proc.Bonding(key)
	if err != nil {
		return nil, mintDecimals{}, err
	}
	decimals, err := s.decimalsOf(record)
	if err != nil {
		return nil, mintDecimals{}, err
	}
	return record, decimals, nil
}

func (s *Server) listBondings(w http.ResponseWriter, r *http.Request) {
	keys, err := s.proc.Bondings()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"bondings": out})
}

func (s *Server) getBonding(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return
	}
	record, decimals, err := s.loadBonding(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var escrow uint64
	if acct, ok, err := s.proc.TokenAccount(record.BaseStorage); err != nil {
		s.fail(w, r, err)
		return
	} else if ok {
		escrow = acct.Amount
	}
	view := bondingView{
		Key:               key.String(),
		BaseMint:          record.BaseMint.String(),
		TargetMint:        record.TargetMint.String(),
		Curve:             record.Curve.String(),
		Index:             record.Index,
		Phase:             record.Phase(s.now().Unix()).String(),
		GeneralAuthority:  keyString(record.GeneralAuthority),
		ReserveAuthority:  keyString(record.ReserveAuthority),
		CurveAuthority:    keyString(record.CurveAuthority),
		BaseStorage:       record.BaseStorage.String(),
		Escrow:            newAmount(escrow, decimals.base),
		BuyBaseRoyalty:    royaltyView{record.BuyBaseRoyalties.String(), percentage(record.BuyBaseRoyaltyPercentage)},
		BuyTargetRoyalty:  royaltyView{record.BuyTargetRoyalties.String(), percentage(record.BuyTargetRoyaltyPercentage)},
		SellBaseRoyalty:   royaltyView{record.SellBaseRoyalties.String(), percentage(record.SellBaseRoyaltyPercentage)},
		SellTargetRoyalty: royaltyView{record.SellTargetRoyalties.String(), percentage(record.SellTargetRoyaltyPercentage)},
		MintCap:           record.MintCap,
		PurchaseCap:       record.PurchaseCap,
		GoLiveUnix:        record.GoLiveUnix,
		FreezeBuyUnix:     record.FreezeBuyUnix,
		CreatedAtUnix:     record.CreatedAtUnix,
		BuyFrozen:         record.BuyFrozen,
		SellFrozen:        record.SellFrozen,

		ReserveBalanceFromBonding:    newAmount(record.ReserveBalanceFromBonding, decimals.base),
		SupplyFromBonding:            newAmount(record.SupplyFromBonding, decimals.target),
		IgnoreExternalReserveChanges: record.IgnoreExternalReserveChanges,
		IgnoreExternalSupplyChanges:  record.IgnoreExternalSupplyChanges,
	}
	writeJSON(w, http.StatusOK, view)
}

type transitionFeeView struct {
	Percentage string `json:"percentage"`
	Interval   uint32 `json:"interval"`
}

type pieceView struct {
	Offset            int64              `json:"offset"`
	Kind              string             `json:"kind"`
	C                 string             `json:"c"`
	B                 string             `json:"b"`
	Pow               uint8              `json:"pow"`
	Frac              uint8              `json:"frac"`
	BuyTransitionFee  *transitionFeeView `json:"buy_transition_fee,omitempty"`
	SellTransitionFee *transitionFeeView `json:"sell_transition_fee,omitempty"`
}

func feeView(fee *curve.TransitionFee) *transitionFeeView {
	if fee == nil {
		return nil
	}
	return &transitionFeeView{Percentage: percentage(fee.Percentage), Interval: fee.Interval}
}

func (s *Server) getCurve(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return
	}
	c, err := s.proc.Curve(key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pieces := make([]pieceView, 0, len(c.Definition.Pieces))
	for _, piece := range c.Definition.Pieces {
		view := pieceView{
			Offset:            piece.Offset,
			BuyTransitionFee:  feeView(piece.BuyTransitionFee),
			SellTransitionFee: feeView(piece.SellTransitionFee),
		}
		if exp, ok := piece.Curve.(curve.ExponentialCurve); ok {
			view.Kind = "exponential"
			view.C, view.B = exp.C.String(), exp.B.String()
			view.Pow, view.Frac = exp.Pow, exp.Frac
		}
		pieces = append(pieces, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key.String(), "pieces": pieces})
}

// tradeRequest carries whole-unit decimal amounts, e.g. "1.5".
type tradeRequest struct {
	Side                string `json:"side,omitempty"`
	Trader              string `json:"trader,omitempty"`
	Source              string `json:"source,omitempty"`
	Destination         string `json:"destination,omitempty"`
	TargetAmount        string `json:"target_amount,omitempty"`
	BaseAmount          string `json:"base_amount,omitempty"`
	MaximumPrice        string `json:"maximum_price,omitempty"`
	MinimumTargetAmount string `json:"minimum_target_amount,omitempty"`
	MinimumPrice        string `json:"minimum_price,omitempty"`
	NativeEscrow        bool   `json:"native_escrow,omitempty"`
}

type tradeView struct {
	Side          string     `json:"side"`
	Price         amountView `json:"price"`
	TotalTarget   amountView `json:"total_target"`
	BaseRoyalty   amountView `json:"base_royalty"`
	TargetRoyalty amountView `json:"target_royalty"`
	AveragePrice  string     `json:"average_price"`

	ReserveBalanceFromBonding amountView `json:"reserve_balance_from_bonding"`
	SupplyFromBonding         amountView `json:"supply_from_bonding"`
}

func newTradeView(result *bonding.TradeResult, decimals mintDecimals) tradeView {
	view := tradeView{
		Side:                      result.Side.String(),
		Price:                     newAmount(result.Price, decimals.base),
		TotalTarget:               newAmount(result.TotalTarget, decimals.target),
		BaseRoyalty:               newAmount(result.BaseRoyalty, decimals.base),
		TargetRoyalty:             newAmount(result.TargetRoyalty, decimals.target),
		ReserveBalanceFromBonding: newAmount(result.ReserveBalanceFromBonding, decimals.base),
		SupplyFromBonding:         newAmount(result.SupplyFromBonding, decimals.target),
	}
	if result.TotalTarget > 0 {
		price := decimal.NewFromBigInt(new(big.Int).SetUint64(result.Price), -int32(decimals.base))
		target := decimal.NewFromBigInt(new(big.Int).SetUint64(result.TotalTarget), -int32(decimals.target))
		view.AveragePrice = price.DivRound(target, int32(decimals.base)).String()
	}
	return view
}

func parseOptional(value string, decimals uint8) (*uint64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	amount, err := precise.ParseAmount(value, decimals)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func parseBound(value string, decimals uint8, fallback uint64) (uint64, error) {
	amount, err := parseOptional(value, decimals)
	if err != nil || amount == nil {
		return fallback, err
	}
	return *amount, nil
}

func (body tradeRequest) accounts() (trader, source, destination solana.PublicKey, err error) {
	if trader, err = solana.PublicKeyFromBase58(body.Trader); err != nil {
		return trader, source, destination, fmt.Errorf("trader: %w", err)
	}
	if source, err = solana.PublicKeyFromBase58(body.Source); err != nil {
		return trader, source, destination, fmt.Errorf("source: %w", err)
	}
	if destination, err = solana.PublicKeyFromBase58(body.Destination); err != nil {
		return trader, source, destination, fmt.Errorf("destination: %w", err)
	}
	return trader, source, destination, nil
}

func (body tradeRequest) buyRequest(key solana.PublicKey, decimals mintDecimals) (bonding.BuyRequest, error) {
	req := bonding.BuyRequest{Bonding: key, NativeEscrow: body.NativeEscrow}
	var err error
	if req.TargetAmount, err = parseOptional(body.TargetAmount, decimals.target); err != nil {
		return req, fmt.Errorf("target_amount: %w", err)
	}
	if req.BaseAmount, err = parseOptional(body.BaseAmount, decimals.base); err != nil {
		return req, fmt.Errorf("base_amount: %w", err)
	}
	if req.MaximumPrice, err = parseBound(body.MaximumPrice, decimals.base, math.MaxUint64); err != nil {
		return req, fmt.Errorf("maximum_price: %w", err)
	}
	if req.MinimumTargetAmount, err = parseBound(body.MinimumTargetAmount, decimals.target, 0); err != nil {
		return req, fmt.Errorf("minimum_target_amount: %w", err)
	}
	return req, nil
}

func (body tradeRequest) sellRequest(key solana.PublicKey, decimals mintDecimals) (bonding.SellRequest, error) {
	req := bonding.SellRequest{Bonding: key, NativeEscrow: body.NativeEscrow}
	amount, err := parseOptional(body.TargetAmount, decimals.target)
	if err != nil {
		return req, fmt.Errorf("target_amount: %w", err)
	}
	if amount != nil {
		req.TargetAmount = *amount
	}
	if req.MinimumPrice, err = parseBound(body.MinimumPrice, decimals.base, 0); err != nil {
		return req, fmt.Errorf("minimum_price: %w", err)
	}
	return req, nil
}

// prepareTrade decodes the body and resolves mint decimals for key.
func (s *Server) prepareTrade(w http.ResponseWriter, r *http.Request) (solana.PublicKey, tradeRequest, mintDecimals, bool) {
	var body tradeRequest
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return key, body, mintDecimals{}, false
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return key, body, mintDecimals{}, false
	}
	_, decimals, err := s.loadBonding(key)
	if err != nil {
		s.fail(w, r, err)
		return key, body, mintDecimals{}, false
	}
	return key, body, decimals, true
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	key, body, decimals, ok := s.prepareTrade(w, r)
	if !ok {
		return
	}
	var (
		result *bonding.TradeResult
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(body.Side)) {
	case "buy", "":
		var req bonding.BuyRequest
		if req, err = body.buyRequest(key, decimals); err == nil {
			result, err = s.proc.QuoteBuy(req)
		} else {
			err = fmt.Errorf("%w: %v", bonding.ErrInvalidArgs, err)
		}
	case "sell":
		var req bonding.SellRequest
		if req, err = body.sellRequest(key, decimals); err == nil {
			result, err = s.proc.QuoteSell(req)
		} else {
			err = fmt.Errorf("%w: %v", bonding.ErrInvalidArgs, err)
		}
	default:
		err = fmt.Errorf("%w: side %q", bonding.ErrInvalidArgs, body.Side)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeView(result, decimals))
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	key, body, decimals, ok := s.prepareTrade(w, r)
	if !ok {
		return
	}
	req, err := body.buyRequest(key, decimals)
	if err == nil {
		req.Buyer, req.Source, req.Destination, err = body.accounts()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return
	}
	if !s.authorizedFor(w, r, req.Buyer) {
		return
	}
	result, err := s.proc.Buy(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logTrade(r, key, req.Buyer, result)
	writeJSON(w, http.StatusOK, newTradeView(result, decimals))
}

func (s *Server) sell(w http.ResponseWriter, r *http.Request) {
	key, body, decimals, ok := s.prepareTrade(w, r)
	if !ok {
		return
	}
	req, err := body.sellRequest(key, decimals)
	if err == nil {
		req.Seller, req.Source, req.Destination, err = body.accounts()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, bonding.CodeInvalidArgs.String(), err.Error())
		return
	}
	if !s.authorizedFor(w, r, req.Seller) {
		return
	}
	result, err := s.proc.Sell(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logTrade(r, key, req.Seller, result)
	writeJSON(w, http.StatusOK, newTradeView(result, decimals))
}

// authorizedFor requires the token subject to be the trading account owner.
func (s *Server) authorizedFor(w http.ResponseWriter, r *http.Request, trader solana.PublicKey) bool {
	if subject := subjectFrom(r.Context()); subject == "" || subject != trader.String() {
		writeError(w, http.StatusForbidden, "Forbidden", "token subject does not own the trader account")
		return false
	}
	return true
}

func (s *Server) logTrade(r *http.Request, key, trader solana.PublicKey, result *bonding.TradeResult) {
	s.logger.LogAttrs(r.Context(), slog.LevelInfo, "bondingd: trade executed",
		slog.String("bonding", key.String()),
		slog.String("side", result.Side.String()),
		logging.MaskField("trader", trader.String()),
		slog.Uint64("price", result.Price),
		slog.Uint64("target", result.TotalTarget),
	)
}
